package usecase

import (
	"context"

	"rewardnet/internal/domain/entity"
	domainerrors "rewardnet/internal/domain/errors"
	"rewardnet/internal/errors"

	"github.com/google/uuid"
)

// DistributeInput describes one approved purchase.
type DistributeInput struct {
	OrderID     string
	ProductID   string
	BuyerID     uuid.UUID
	Schedule    entity.CommissionSchedule
	BuyerReward int64
}

// CommissionQuery filters a participant's ledger listing.
type CommissionQuery struct {
	Status string
	Limit  int
	Offset int
}

// CommissionPage is one page of ledger entries.
type CommissionPage struct {
	Entries []*entity.CommissionEntry `json:"entries"`
	Total   int64                     `json:"total"`
	Limit   int                       `json:"limit"`
	Offset  int                       `json:"offset"`
}

// CommissionUsecase defines commission distribution and reporting use cases
type CommissionUsecase interface {
	// Distribute credits the buyer and its upline for one order in a single transaction.
	// Re-running it for the same order credits nothing twice.
	Distribute(ctx context.Context, input *DistributeInput) (*entity.DistributionResult, error)

	// Summary rolls up the participant's balances and ledger by status
	Summary(ctx context.Context, participantID uuid.UUID) (*entity.EarningsSummary, error)

	// ListCommissions pages through the participant's ledger, newest first
	ListCommissions(ctx context.Context, participantID uuid.UUID, query *CommissionQuery) (*CommissionPage, error)

	// ListOrderCommissions returns the ledger entries of one order in level order
	ListOrderCommissions(ctx context.Context, orderID string) ([]*entity.CommissionEntry, error)
}

// BuildSchedule validates raw tiers, reporting boundary violations as ErrInvalidSchedule.
func BuildSchedule(tiers []entity.CommissionTier) (entity.CommissionSchedule, error) {
	schedule, err := entity.NewCommissionSchedule(tiers)
	if err != nil {
		return entity.CommissionSchedule{}, errors.Wrap(domainerrors.ErrInvalidSchedule.WithDetails(err.Error()), "build commission schedule")
	}

	return schedule, nil
}
