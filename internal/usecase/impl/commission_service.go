package impl

import (
	"context"
	"log/slog"
	"strings"

	deliverycontext "rewardnet/internal/delivery/context"
	"rewardnet/internal/domain/constants"
	"rewardnet/internal/domain/entity"
	domainerrors "rewardnet/internal/domain/errors"
	"rewardnet/internal/domain/repository"
	"rewardnet/internal/domain/service"
	"rewardnet/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const (
	defaultCommissionPageSize = 20
	maxCommissionPageSize     = 100
	maxOrderIDLength          = 64
)

// commissionService implements the CommissionUsecase interface.
type commissionService struct {
	txManager       repository.TransactionManager
	participantRepo repository.ParticipantRepository
	commissionRepo  repository.CommissionRepository
	publisher       service.EventPublisher
	summaryCache    service.SummaryCache
	metrics         service.NetworkMetrics
	logger          *slog.Logger
}

// CommissionServiceParams holds dependencies for CommissionService, injected by Fx.
type CommissionServiceParams struct {
	fx.In

	TxManager       repository.TransactionManager
	ParticipantRepo repository.ParticipantRepository
	CommissionRepo  repository.CommissionRepository
	Publisher       service.EventPublisher
	SummaryCache    service.SummaryCache
	Metrics         service.NetworkMetrics
	Logger          *slog.Logger
}

// NewCommissionService creates a new commission service instance
func NewCommissionService(params CommissionServiceParams) usecase.CommissionUsecase {
	return &commissionService{
		txManager:       params.TxManager,
		participantRepo: params.ParticipantRepo,
		commissionRepo:  params.CommissionRepo,
		publisher:       params.Publisher,
		summaryCache:    params.SummaryCache,
		metrics:         params.Metrics,
		logger:          params.Logger,
	}
}

func (s *commissionService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, s.logger)
}

// Distribute credits the buyer reward at level 0, then every configured level that has an ancestor.
// All credits and ledger rows commit together or not at all.
func (s *commissionService) Distribute(ctx context.Context, input *usecase.DistributeInput) (*entity.DistributionResult, error) {
	input, err := normalizeDistribution(input)
	if err != nil {
		s.metrics.ObserveDistribution(service.DistributionResultRejected)

		return nil, err
	}

	var result *entity.DistributionResult
	err = s.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		result = &entity.DistributionResult{OrderID: input.OrderID, Entries: []*entity.CommissionEntry{}}
		participantRepo := repoFactory.NewParticipantRepository()
		commissionRepo := repoFactory.NewCommissionRepository()

		buyer, err := participantRepo.FindByID(ctx, input.BuyerID)
		if err != nil {
			return participantError(err, "load buyer")
		}

		if input.BuyerReward > 0 {
			if err := s.credit(ctx, participantRepo, commissionRepo, result, input, buyer.ID, constants.BuyerRewardLevel, input.BuyerReward); err != nil {
				return err
			}
		}

		if input.Schedule.IsEmpty() {
			return nil
		}

		ancestors, err := walkUpline(ctx, participantRepo, buyer, input.Schedule.DeepestLevel())
		if err != nil {
			return storeError(err, "resolve upline")
		}

		for _, tier := range input.Schedule.Tiers() {
			if tier.Points <= 0 || tier.Level > len(ancestors) {
				continue
			}

			ancestor := ancestors[tier.Level-1].Participant
			if err := s.credit(ctx, participantRepo, commissionRepo, result, input, ancestor.ID, tier.Level, tier.Points); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		s.metrics.ObserveDistribution(service.DistributionResultFailed)
		s.log(ctx).Error("Commission distribution rolled back",
			slog.String("order_id", input.OrderID),
			slog.String("buyer_id", input.BuyerID.String()),
			slog.Any("error", err),
		)

		return nil, storeError(err, "distribute commissions")
	}

	s.afterCommit(ctx, input, result)

	return result, nil
}

// credit writes one ledger row and, only if it was new, adds its points to the receiver.
func (s *commissionService) credit(
	ctx context.Context,
	participantRepo repository.ParticipantRepository,
	commissionRepo repository.CommissionRepository,
	result *entity.DistributionResult,
	input *usecase.DistributeInput,
	receiverID uuid.UUID,
	level int,
	points int64,
) error {
	entry := &entity.CommissionEntry{
		ParticipantID:     receiverID,
		FromParticipantID: input.BuyerID,
		OrderID:           input.OrderID,
		ProductID:         input.ProductID,
		Level:             level,
		Points:            points,
		Status:            entity.CommissionStatusPending,
	}

	created, err := commissionRepo.Create(ctx, entry)
	if err != nil {
		return storeError(err, "record commission entry")
	}
	if !created {
		result.EntriesSkipped++

		return nil
	}

	if err := participantRepo.AddPoints(ctx, receiverID, points); err != nil {
		return participantError(err, "credit points")
	}

	result.TotalDistributed += points
	result.EntriesCreated++
	result.Entries = append(result.Entries, entry)

	return nil
}

// afterCommit reports a committed distribution. Failures here never undo the credits.
func (s *commissionService) afterCommit(ctx context.Context, input *usecase.DistributeInput, result *entity.DistributionResult) {
	logger := s.log(ctx)

	if result.EntriesCreated == 0 && result.EntriesSkipped > 0 {
		s.metrics.ObserveDistribution(service.DistributionResultDuplicate)
		logger.Info("Commission distribution already applied",
			slog.String("order_id", input.OrderID),
			slog.Int("entries_skipped", result.EntriesSkipped),
		)

		return
	}

	s.metrics.ObserveDistribution(service.DistributionResultDistributed)
	for _, entry := range result.Entries {
		s.metrics.ObserveCredit(entry.Level, entry.Points)
	}

	logger.Info("Commission distributed",
		slog.String("order_id", input.OrderID),
		slog.String("buyer_id", input.BuyerID.String()),
		slog.Int64("total_distributed", result.TotalDistributed),
		slog.Int("entries_created", result.EntriesCreated),
		slog.Int("entries_skipped", result.EntriesSkipped),
	)

	if result.EntriesCreated == 0 {
		return
	}

	if err := s.summaryCache.Invalidate(ctx, result.CreditedParticipantIDs()...); err != nil {
		logger.Warn("Failed to invalidate cached summaries", slog.String("order_id", input.OrderID), slog.Any("error", err))
	}

	event := &service.CommissionDistributedEvent{
		RequestID:        deliverycontext.GetRequestIDFromContext(ctx),
		OrderID:          input.OrderID,
		ProductID:        input.ProductID,
		BuyerID:          input.BuyerID.String(),
		TotalDistributed: result.TotalDistributed,
		Credits:          make([]service.CommissionCredit, 0, len(result.Entries)),
	}
	for _, entry := range result.Entries {
		event.Credits = append(event.Credits, service.CommissionCredit{
			ParticipantID: entry.ParticipantID.String(),
			Level:         entry.Level,
			Points:        entry.Points,
		})
	}
	if err := s.publisher.PublishCommissionDistributed(ctx, event); err != nil {
		logger.Warn("Failed to publish commission event", slog.String("order_id", input.OrderID), slog.Any("error", err))
	}
}

// normalizeDistribution validates input and returns a copy with the order id trimmed.
func normalizeDistribution(input *usecase.DistributeInput) (*usecase.DistributeInput, error) {
	if input == nil {
		return nil, errors.Wrap(domainerrors.ErrInvalidDistribution, "missing input")
	}

	normalized := *input
	normalized.OrderID = strings.TrimSpace(input.OrderID)
	switch {
	case normalized.OrderID == "":
		return nil, errors.Wrap(domainerrors.ErrInvalidDistribution.WithDetails("order id is required"), "validate distribution")
	case len(normalized.OrderID) > maxOrderIDLength:
		return nil, errors.Wrap(domainerrors.ErrInvalidDistribution.WithDetails("order id is too long"), "validate distribution")
	case normalized.BuyerID == uuid.Nil:
		return nil, errors.Wrap(domainerrors.ErrInvalidDistribution.WithDetails("buyer id is required"), "validate distribution")
	case normalized.BuyerReward < 0:
		return nil, errors.Wrap(domainerrors.ErrInvalidDistribution.WithDetails("buyer reward must not be negative"), "validate distribution")
	}

	return &normalized, nil
}

// Summary rolls up the participant's balances and ledger by status
func (s *commissionService) Summary(ctx context.Context, participantID uuid.UUID) (*entity.EarningsSummary, error) {
	if cached, ok, err := s.summaryCache.Get(ctx, participantID); err != nil {
		s.log(ctx).Warn("Summary cache read failed", slog.String("participant_id", participantID.String()), slog.Any("error", err))
	} else if ok {
		return cached, nil
	}

	// The generation is read before the store; an invalidation after this point voids the cache write.
	generation, genErr := s.summaryCache.Generation(ctx, participantID)
	if genErr != nil {
		s.log(ctx).Warn("Summary cache generation read failed", slog.String("participant_id", participantID.String()), slog.Any("error", genErr))
	}

	participant, err := s.participantRepo.FindByID(ctx, participantID)
	if err != nil {
		return nil, participantError(err, "load participant for summary")
	}

	totals, err := s.commissionRepo.SumByStatus(ctx, participantID)
	if err != nil {
		return nil, storeError(err, "sum commissions")
	}

	summary := buildSummary(participant, totals)

	if genErr == nil {
		if err := s.summaryCache.Set(ctx, summary, generation); err != nil {
			s.log(ctx).Warn("Summary cache write failed", slog.String("participant_id", participantID.String()), slog.Any("error", err))
		}
	}

	return summary, nil
}

// buildSummary counts cancelled entries separately; they are excluded from TotalCommissions.
func buildSummary(participant *entity.Participant, totals map[entity.CommissionStatus]entity.CommissionTotals) *entity.EarningsSummary {
	paid := totals[entity.CommissionStatusPaid]
	pending := totals[entity.CommissionStatusPending]
	cancelled := totals[entity.CommissionStatusCancelled]

	var entryCount int64
	for _, t := range totals {
		entryCount += t.Count
	}

	return &entity.EarningsSummary{
		ParticipantID:        participant.ID,
		TotalPoints:          participant.TotalPoints,
		TotalEarnings:        participant.TotalEarnings,
		PendingWithdrawal:    participant.PendingWithdrawal,
		WithdrawnAmount:      participant.WithdrawnAmount,
		TotalCommissions:     paid.Points + pending.Points,
		PaidCommissions:      paid.Points,
		PendingCommissions:   pending.Points,
		CancelledCommissions: cancelled.Points,
		EntryCount:           entryCount,
	}
}

// ListCommissions pages through the participant's ledger, newest first
func (s *commissionService) ListCommissions(ctx context.Context, participantID uuid.UUID, query *usecase.CommissionQuery) (*usecase.CommissionPage, error) {
	if query == nil {
		query = &usecase.CommissionQuery{}
	}

	filter := repository.CommissionFilter{Limit: query.Limit, Offset: query.Offset}
	if filter.Limit <= 0 {
		filter.Limit = defaultCommissionPageSize
	}
	if filter.Limit > maxCommissionPageSize {
		filter.Limit = maxCommissionPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if query.Status != "" {
		status := entity.CommissionStatus(strings.ToLower(query.Status))
		if !status.IsValid() {
			return nil, errors.Wrap(domainerrors.ErrInvalidCommissionStatus.WithDetails(query.Status), "list commissions")
		}
		filter.Status = &status
	}

	if _, err := s.participantRepo.FindByID(ctx, participantID); err != nil {
		return nil, participantError(err, "load participant for ledger")
	}

	entries, total, err := s.commissionRepo.FindByParticipant(ctx, participantID, filter)
	if err != nil {
		return nil, storeError(err, "list commissions")
	}

	return &usecase.CommissionPage{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// ListOrderCommissions returns the ledger entries of one order
func (s *commissionService) ListOrderCommissions(ctx context.Context, orderID string) ([]*entity.CommissionEntry, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, errors.Wrap(domainerrors.ErrInvalidDistribution.WithDetails("order id is required"), "list order commissions")
	}

	entries, err := s.commissionRepo.FindByOrder(ctx, orderID)
	if err != nil {
		return nil, storeError(err, "list order commissions")
	}

	return entries, nil
}
