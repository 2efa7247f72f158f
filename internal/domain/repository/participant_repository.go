// Package repository defines the interfaces for the persistence layer.
package repository

import (
	"context"

	"rewardnet/internal/domain/entity"
	"rewardnet/internal/errors"

	"github.com/google/uuid"
)

// Domain-specific errors for participant persistence.
var (
	// ErrParticipantNotFound is returned when a participant is not found.
	ErrParticipantNotFound = errors.New("participant not found")
	// ErrDuplicateParticipant is returned when a member id or referral code is already taken.
	ErrDuplicateParticipant = errors.New("participant already exists")
	// ErrSlotTaken is returned when a conditional child-slot write finds the slot already occupied.
	ErrSlotTaken = errors.New("child slot already taken")
	// ErrAlreadyPlaced is returned when a conditional parent write finds the parent already set.
	ErrAlreadyPlaced = errors.New("participant already placed")
)

// ParticipantRepository defines the interface for participant and tree-link persistence.
type ParticipantRepository interface {
	// Create persists a new participant with no tree links.
	Create(ctx context.Context, participant *entity.Participant) error

	// FindByID retrieves a participant by its internal id.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Participant, error)

	// FindByIDs retrieves a batch of participants keyed by id. Missing ids are absent from the map.
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*entity.Participant, error)

	// FindByMemberID retrieves a participant by its external member id.
	FindByMemberID(ctx context.Context, memberID string) (*entity.Participant, error)

	// FindByReferralCode retrieves a participant by its referral code.
	FindByReferralCode(ctx context.Context, code string) (*entity.Participant, error)

	// ReferralCodeExists checks the primary for a referral code collision.
	ReferralCodeExists(ctx context.Context, code string) (bool, error)

	// MemberIDExists checks the primary for a member id collision.
	MemberIDExists(ctx context.Context, memberID string) (bool, error)

	// AssignChild sets parentID's slot to childID only if the slot is still empty.
	// Returns ErrSlotTaken when another writer filled it first.
	AssignChild(ctx context.Context, parentID uuid.UUID, slot entity.Slot, childID uuid.UUID) error

	// SetParent records the placement on the child only if it has no parent yet.
	// Returns ErrAlreadyPlaced when the parent is already set.
	SetParent(ctx context.Context, placement *entity.Placement) error

	// AddPoints atomically increments a participant's point balance.
	AddPoints(ctx context.Context, id uuid.UUID, points int64) error
}
