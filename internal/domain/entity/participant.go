// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// Slot names one of the two child positions under a tree node.
type Slot string

const (
	SlotLeft  Slot = "left"
	SlotRight Slot = "right"
)

// IsValid reports whether the slot is one of the two known positions.
func (s Slot) IsValid() bool {
	return s == SlotLeft || s == SlotRight
}

// Participant is a node in the placement tree and the unit of commission accounting.
type Participant struct {
	ID           uuid.UUID  // Internal handle.
	MemberID     string     // Human-presentable external identifier, e.g. "RN04182736".
	ReferralCode string     // Code newcomers quote to name this participant as their sponsor.
	DisplayName  string     // Optional name supplied at registration.
	SponsorID    *uuid.UUID // Who invited this participant (genealogy). Independent of ParentID.
	ParentID     *uuid.UUID // Tree parent. Set once by placement, never changed.
	Position     *Slot      // Which slot of ParentID this participant occupies.
	LeftChildID  *uuid.UUID
	RightChildID *uuid.UUID

	TotalPoints       int64 // Redeemable point balance.
	TotalEarnings     int64 // Monetary fields below are in minor currency units.
	PendingWithdrawal int64
	WithdrawnAmount   int64

	IsActive  bool
	PlacedAt  *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsPlaced reports whether the participant already has a tree parent.
func (p *Participant) IsPlaced() bool {
	return p.ParentID != nil
}

// HasChildren reports whether either child slot is occupied.
func (p *Participant) HasChildren() bool {
	return p.LeftChildID != nil || p.RightChildID != nil
}

// ChildAt returns the participant occupying the given slot, or nil.
func (p *Participant) ChildAt(slot Slot) *uuid.UUID {
	switch slot {
	case SlotLeft:
		return p.LeftChildID
	case SlotRight:
		return p.RightChildID
	default:
		return nil
	}
}

// OpenSlot returns the first empty child slot, left before right.
func (p *Participant) OpenSlot() (Slot, bool) {
	if p.LeftChildID == nil {
		return SlotLeft, true
	}
	if p.RightChildID == nil {
		return SlotRight, true
	}

	return "", false
}

// Children returns the occupied child ids in slot order.
func (p *Participant) Children() []uuid.UUID {
	children := make([]uuid.UUID, 0, 2)
	if p.LeftChildID != nil {
		children = append(children, *p.LeftChildID)
	}
	if p.RightChildID != nil {
		children = append(children, *p.RightChildID)
	}

	return children
}
