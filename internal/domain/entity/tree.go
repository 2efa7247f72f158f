package entity

import (
	"time"

	"github.com/google/uuid"
)

// Placement is the outcome of attaching a participant to the tree.
type Placement struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	SponsorID     uuid.UUID `json:"sponsor_id"`
	ParentID      uuid.UUID `json:"parent_id"`
	Slot          Slot      `json:"slot"`
	Depth         int       `json:"depth"` // Distance from the sponsor to the chosen parent.
	Attempts      int       `json:"attempts"`
	PlacedAt      time.Time `json:"placed_at"`
}

// Ancestor is one entry of an upline, nearest first.
type Ancestor struct {
	Level       int          `json:"level"` // 1 = immediate parent.
	Participant *Participant `json:"participant"`
}

// Descendant is one entry of a downline in breadth-first order.
type Descendant struct {
	Depth       int          `json:"depth"` // 1 = direct child.
	Participant *Participant `json:"participant"`
}

// DirectDownline holds the two immediate children, each possibly absent.
type DirectDownline struct {
	Left  *Participant `json:"left,omitempty"`
	Right *Participant `json:"right,omitempty"`
}
