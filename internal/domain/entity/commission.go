// Package entity contains the core business objects of the project.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// CommissionStatus is the payout state of a ledger entry.
type CommissionStatus string

const (
	CommissionStatusPending   CommissionStatus = "pending"
	CommissionStatusPaid      CommissionStatus = "paid"
	CommissionStatusCancelled CommissionStatus = "cancelled"
)

// IsValid reports whether the status is a known value.
func (s CommissionStatus) IsValid() bool {
	switch s {
	case CommissionStatusPending, CommissionStatusPaid, CommissionStatusCancelled:
		return true
	default:
		return false
	}
}

// CommissionEntry is an immutable audit record of one point credit.
type CommissionEntry struct {
	ID                uuid.UUID        `json:"id"`
	ParticipantID     uuid.UUID        `json:"participant_id"`      // Receiving participant.
	FromParticipantID uuid.UUID        `json:"from_participant_id"` // Purchasing participant.
	OrderID           string           `json:"order_id"`
	ProductID         string           `json:"product_id"`
	Level             int              `json:"level"` // 0 = buyer reward, 1..20 = ancestor distance.
	Points            int64            `json:"points"`
	Status            CommissionStatus `json:"status"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// DistributionResult reports what one distribution call credited.
type DistributionResult struct {
	OrderID          string             `json:"order_id"`
	TotalDistributed int64              `json:"total_distributed"`
	EntriesCreated   int                `json:"entries_created"`
	EntriesSkipped   int                `json:"entries_skipped"` // Already recorded for this order.
	Entries          []*CommissionEntry `json:"entries"`
}

// CreditedParticipantIDs lists every participant that received points, in ledger order.
func (r *DistributionResult) CreditedParticipantIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r.Entries))
	for _, entry := range r.Entries {
		ids = append(ids, entry.ParticipantID)
	}

	return ids
}

// CommissionTotals aggregates ledger entries of one status.
type CommissionTotals struct {
	Points int64 `json:"points"`
	Count  int64 `json:"count"`
}

// EarningsSummary rolls up a participant's balances and ledger.
type EarningsSummary struct {
	ParticipantID        uuid.UUID `json:"participant_id"`
	TotalPoints          int64     `json:"total_points"`
	TotalEarnings        int64     `json:"total_earnings"`
	PendingWithdrawal    int64     `json:"pending_withdrawal"`
	WithdrawnAmount      int64     `json:"withdrawn_amount"`
	TotalCommissions     int64     `json:"total_commissions"` // pending + paid
	PaidCommissions      int64     `json:"paid_commissions"`
	PendingCommissions   int64     `json:"pending_commissions"`
	CancelledCommissions int64     `json:"cancelled_commissions"`
	EntryCount           int64     `json:"entry_count"`
}
