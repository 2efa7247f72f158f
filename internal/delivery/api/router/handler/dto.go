package handler

import (
	"time"

	"rewardnet/internal/domain/entity"

	"github.com/google/uuid"
)

// ParticipantResponse is the public view of a participant
type ParticipantResponse struct {
	ID                uuid.UUID    `json:"id"`
	MemberID          string       `json:"member_id"`
	ReferralCode      string       `json:"referral_code"`
	DisplayName       string       `json:"display_name,omitempty"`
	SponsorID         *uuid.UUID   `json:"sponsor_id,omitempty"`
	ParentID          *uuid.UUID   `json:"parent_id,omitempty"`
	Position          *entity.Slot `json:"position,omitempty"`
	LeftChildID       *uuid.UUID   `json:"left_child_id,omitempty"`
	RightChildID      *uuid.UUID   `json:"right_child_id,omitempty"`
	TotalPoints       int64        `json:"total_points"`
	TotalEarnings     int64        `json:"total_earnings"`
	PendingWithdrawal int64        `json:"pending_withdrawal"`
	WithdrawnAmount   int64        `json:"withdrawn_amount"`
	IsActive          bool         `json:"is_active"`
	PlacedAt          *time.Time   `json:"placed_at,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
}

func toParticipantResponse(p *entity.Participant) *ParticipantResponse {
	if p == nil {
		return nil
	}

	return &ParticipantResponse{
		ID:                p.ID,
		MemberID:          p.MemberID,
		ReferralCode:      p.ReferralCode,
		DisplayName:       p.DisplayName,
		SponsorID:         p.SponsorID,
		ParentID:          p.ParentID,
		Position:          p.Position,
		LeftChildID:       p.LeftChildID,
		RightChildID:      p.RightChildID,
		TotalPoints:       p.TotalPoints,
		TotalEarnings:     p.TotalEarnings,
		PendingWithdrawal: p.PendingWithdrawal,
		WithdrawnAmount:   p.WithdrawnAmount,
		IsActive:          p.IsActive,
		PlacedAt:          p.PlacedAt,
		CreatedAt:         p.CreatedAt,
	}
}

// RegistrationResponse is returned by the register endpoint
type RegistrationResponse struct {
	Participant *ParticipantResponse `json:"participant"`
	Placement   *entity.Placement    `json:"placement,omitempty"`
}

// AncestorResponse is one upline entry
type AncestorResponse struct {
	Level       int                  `json:"level"`
	Participant *ParticipantResponse `json:"participant"`
}

func toAncestorResponses(ancestors []*entity.Ancestor) []*AncestorResponse {
	out := make([]*AncestorResponse, 0, len(ancestors))
	for _, a := range ancestors {
		out = append(out, &AncestorResponse{Level: a.Level, Participant: toParticipantResponse(a.Participant)})
	}

	return out
}

// DescendantResponse is one downline entry
type DescendantResponse struct {
	Depth       int                  `json:"depth"`
	Participant *ParticipantResponse `json:"participant"`
}

func toDescendantResponses(descendants []*entity.Descendant) []*DescendantResponse {
	out := make([]*DescendantResponse, 0, len(descendants))
	for _, d := range descendants {
		out = append(out, &DescendantResponse{Depth: d.Depth, Participant: toParticipantResponse(d.Participant)})
	}

	return out
}

// DirectDownlineResponse holds both child slots
type DirectDownlineResponse struct {
	Left  *ParticipantResponse `json:"left"`
	Right *ParticipantResponse `json:"right"`
}
