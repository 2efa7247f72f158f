package repository

import (
	"context"

	"rewardnet/internal/domain/entity"

	"github.com/google/uuid"
)

// CommissionFilter narrows a ledger listing.
type CommissionFilter struct {
	Status *entity.CommissionStatus
	Limit  int
	Offset int
}

// CommissionRepository defines the interface for commission ledger persistence.
type CommissionRepository interface {
	// Create inserts a ledger entry unless one already exists for the same
	// (order, participant, level). The boolean reports whether a row was written.
	Create(ctx context.Context, entry *entity.CommissionEntry) (bool, error)

	// FindByOrder returns every entry of an order in level order.
	FindByOrder(ctx context.Context, orderID string) ([]*entity.CommissionEntry, error)

	// FindByParticipant returns a page of the participant's entries, newest first, and the total count.
	FindByParticipant(ctx context.Context, participantID uuid.UUID, filter CommissionFilter) ([]*entity.CommissionEntry, int64, error)

	// SumByStatus aggregates the participant's entries per status.
	SumByStatus(ctx context.Context, participantID uuid.UUID) (map[entity.CommissionStatus]entity.CommissionTotals, error)
}
