package service

import (
	"context"

	"rewardnet/internal/domain/entity"
)

// CommissionCredit is one credited line of a distribution.
type CommissionCredit struct {
	ParticipantID string `json:"participant_id"`
	Level         int    `json:"level"`
	Points        int64  `json:"points"`
}

// CommissionDistributedEvent is emitted after a distribution commits,
// for downstream notification and payout services.
type CommissionDistributedEvent struct {
	RequestID        string             `json:"request_id,omitempty"` // For distributed tracing
	OrderID          string             `json:"order_id"`
	ProductID        string             `json:"product_id,omitempty"`
	BuyerID          string             `json:"buyer_id"`
	TotalDistributed int64              `json:"total_distributed"`
	Credits          []CommissionCredit `json:"credits"`
}

// OrderApprovedEvent is consumed by the worker; it carries everything a distribution needs.
type OrderApprovedEvent struct {
	RequestID   string                  `json:"request_id,omitempty"`
	OrderID     string                  `json:"order_id"`
	ProductID   string                  `json:"product_id,omitempty"`
	BuyerID     string                  `json:"buyer_id"`
	Schedule    []entity.CommissionTier `json:"schedule"`
	BuyerReward int64                   `json:"buyer_reward"`
}

// EventPublisher defines the interface for publishing events to a message queue
type EventPublisher interface {
	// PublishCommissionDistributed publishes a committed distribution
	PublishCommissionDistributed(ctx context.Context, event *CommissionDistributedEvent) error

	// Close releases any resources held by the publisher
	Close() error
}
