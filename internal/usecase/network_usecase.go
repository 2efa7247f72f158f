package usecase

import (
	"context"

	"rewardnet/internal/domain/entity"

	"github.com/google/uuid"
)

// RegisterInput carries a newcomer's registration request.
type RegisterInput struct {
	DisplayName string `json:"display_name" validate:"omitempty,max=100"`
	// SponsorCode is optional; without it the participant starts a new tree as its root.
	SponsorCode string `json:"sponsor_code" validate:"omitempty,alphanum,max=32"`
}

// Registration is the outcome of Register.
type Registration struct {
	Participant *entity.Participant
	Placement   *entity.Placement // nil when no sponsor was given
}

// NetworkUsecase defines placement and tree traversal use cases
type NetworkUsecase interface {
	// Register creates a participant with fresh identifiers and, when a sponsor code is given,
	// places it in the same transaction.
	Register(ctx context.Context, input *RegisterInput) (*Registration, error)

	// Place attaches an existing, unplaced participant under the sponsor's subtree using breadth-first spillover.
	Place(ctx context.Context, participantID uuid.UUID, sponsorCode string) (*entity.Placement, error)

	// GetParticipant retrieves a participant by internal id
	GetParticipant(ctx context.Context, participantID uuid.UUID) (*entity.Participant, error)

	// GetParticipantByCode retrieves a participant by referral code
	GetParticipantByCode(ctx context.Context, code string) (*entity.Participant, error)

	// GetParticipantByMemberID retrieves a participant by external member id
	GetParticipantByMemberID(ctx context.Context, memberID string) (*entity.Participant, error)

	// Upline returns ancestors nearest-first, at most maxLevel of them (capped at the configured limit).
	// maxLevel 0 yields an empty walk; a negative maxLevel is rejected.
	Upline(ctx context.Context, participantID uuid.UUID, maxLevel int) ([]*entity.Ancestor, error)

	// DirectDownline returns the two immediate children
	DirectDownline(ctx context.Context, participantID uuid.UUID) (*entity.DirectDownline, error)

	// FullDownline returns all descendants breadth-first, at most maxDepth levels deep
	// (capped at the configured limit). maxDepth 0 yields an empty walk; a negative maxDepth is rejected.
	FullDownline(ctx context.Context, participantID uuid.UUID, maxDepth int) ([]*entity.Descendant, error)
}
