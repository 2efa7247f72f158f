package service

import (
	"context"

	"rewardnet/internal/domain/entity"

	"github.com/google/uuid"
)

// SummaryCache stores computed earnings summaries between ledger changes.
type SummaryCache interface {
	// Get returns the cached summary; ok is false on a miss.
	Get(ctx context.Context, participantID uuid.UUID) (summary *entity.EarningsSummary, ok bool, err error)

	// Generation returns the participant's invalidation counter. Read it before computing a summary.
	Generation(ctx context.Context, participantID uuid.UUID) (int64, error)

	// Set stores a summary computed after Generation returned generation.
	// The write is dropped when the participant was invalidated in between.
	Set(ctx context.Context, summary *entity.EarningsSummary, generation int64) error

	// Invalidate drops cached summaries for the given participants and bumps their generation.
	Invalidate(ctx context.Context, participantIDs ...uuid.UUID) error
}
