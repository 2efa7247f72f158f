package impl

import (
	"context"
	"testing"
	"time"

	deliverycontext "rewardnet/internal/delivery/context"
	"rewardnet/internal/domain/entity"
	domainerrors "rewardnet/internal/domain/errors"
	"rewardnet/internal/domain/repository"
	"rewardnet/internal/domain/service"
	"rewardnet/internal/infra/cache"
	"rewardnet/internal/usecase"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func twoLevelSchedule(t *testing.T) entity.CommissionSchedule {
	t.Helper()

	schedule, err := usecase.BuildSchedule([]entity.CommissionTier{
		{Level: 1, Points: 10},
		{Level: 2, Points: 5},
	})
	require.NoError(t, err)

	return schedule
}

func (f *engineFixtures) expectCommitHooks() {
	f.cache.On("Invalidate", mock.Anything, mock.Anything).Return(nil)
	f.publisher.On("PublishCommissionDistributed", mock.Anything, mock.Anything).Return(nil)
}

func TestCommissionService_Distribute_TwoAncestors(t *testing.T) {
	ctx := deliverycontext.WithRequestID(context.Background(), "req-123")
	f := newEngineFixtures(t)
	nodes := f.chain(t, 3)
	grandparent, parent, buyer := nodes[0], nodes[1], nodes[2]

	f.cache.On("Invalidate", mock.Anything, []uuid.UUID{buyer.ID, parent.ID, grandparent.ID}).Return(nil).Once()
	f.publisher.On("PublishCommissionDistributed", mock.Anything, mock.MatchedBy(func(event *service.CommissionDistributedEvent) bool {
		return event.OrderID == "ORD-1" &&
			event.RequestID == "req-123" &&
			event.BuyerID == buyer.ID.String() &&
			event.TotalDistributed == 17 &&
			len(event.Credits) == 3
	})).Return(nil).Once()

	svc := f.commissionService(nil)
	result, err := svc.Distribute(ctx, &usecase.DistributeInput{
		OrderID:     "ORD-1",
		ProductID:   "SKU-9",
		BuyerID:     buyer.ID,
		Schedule:    twoLevelSchedule(t),
		BuyerReward: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(17), result.TotalDistributed)
	assert.Equal(t, 3, result.EntriesCreated)
	assert.Equal(t, 0, result.EntriesSkipped)

	require.Len(t, result.Entries, 3)
	wantCredits := []struct {
		receiver uuid.UUID
		level    int
		points   int64
	}{
		{buyer.ID, 0, 2},
		{parent.ID, 1, 10},
		{grandparent.ID, 2, 5},
	}
	for i, want := range wantCredits {
		entry := result.Entries[i]
		assert.Equal(t, want.receiver, entry.ParticipantID)
		assert.Equal(t, want.level, entry.Level)
		assert.Equal(t, want.points, entry.Points)
		assert.Equal(t, buyer.ID, entry.FromParticipantID)
		assert.Equal(t, "SKU-9", entry.ProductID)
		assert.Equal(t, entity.CommissionStatusPending, entry.Status)
	}

	assert.Equal(t, int64(2), f.reload(t, buyer.ID).TotalPoints)
	assert.Equal(t, int64(10), f.reload(t, parent.ID).TotalPoints)
	assert.Equal(t, int64(5), f.reload(t, grandparent.ID).TotalPoints)

	assert.Equal(t, 1, f.metrics.distributions[service.DistributionResultDistributed])
	assert.Equal(t, 3, f.metrics.credits)
	f.cache.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestCommissionService_Distribute_SkipsMissingLevels(t *testing.T) {
	f := newEngineFixtures(t)
	f.expectCommitHooks()
	nodes := f.chain(t, 2)
	parent, buyer := nodes[0], nodes[1]

	result, err := f.commissionService(nil).Distribute(context.Background(), &usecase.DistributeInput{
		OrderID:     "ORD-1",
		BuyerID:     buyer.ID,
		Schedule:    twoLevelSchedule(t),
		BuyerReward: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(12), result.TotalDistributed)
	assert.Equal(t, 2, result.EntriesCreated)
	assert.Equal(t, int64(2), f.reload(t, buyer.ID).TotalPoints)
	assert.Equal(t, int64(10), f.reload(t, parent.ID).TotalPoints)
}

func TestCommissionService_Distribute_EmptyScheduleAndNoReward(t *testing.T) {
	f := newEngineFixtures(t)
	nodes := f.chain(t, 2)

	result, err := f.commissionService(nil).Distribute(context.Background(), &usecase.DistributeInput{
		OrderID: "ORD-1",
		BuyerID: nodes[1].ID,
	})
	require.NoError(t, err)

	assert.Zero(t, result.TotalDistributed)
	assert.Zero(t, result.EntriesCreated)
	assert.Empty(t, result.Entries)
	assert.Zero(t, f.reload(t, nodes[0].ID).TotalPoints)
	assert.Zero(t, f.reload(t, nodes[1].ID).TotalPoints)

	entries, err := f.commissions.FindByOrder(context.Background(), "ORD-1")
	require.NoError(t, err)
	assert.Empty(t, entries)

	f.publisher.AssertNotCalled(t, "PublishCommissionDistributed", mock.Anything, mock.Anything)
	f.cache.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
}

func TestCommissionService_Distribute_RewardOnlyWhenScheduleEmpty(t *testing.T) {
	f := newEngineFixtures(t)
	f.expectCommitHooks()
	nodes := f.chain(t, 2)

	result, err := f.commissionService(nil).Distribute(context.Background(), &usecase.DistributeInput{
		OrderID:     "ORD-1",
		BuyerID:     nodes[1].ID,
		BuyerReward: 7,
	})
	require.NoError(t, err)

	require.Len(t, result.Entries, 1)
	assert.Equal(t, 0, result.Entries[0].Level)
	assert.Equal(t, nodes[1].ID, result.Entries[0].ParticipantID)
	assert.Equal(t, int64(7), f.reload(t, nodes[1].ID).TotalPoints)
	assert.Zero(t, f.reload(t, nodes[0].ID).TotalPoints)
}

func TestCommissionService_Distribute_RootBuyerGetsOnlyReward(t *testing.T) {
	f := newEngineFixtures(t)
	f.expectCommitHooks()
	buyer := f.newParticipant(t, "ROOTBUYR")

	result, err := f.commissionService(nil).Distribute(context.Background(), &usecase.DistributeInput{
		OrderID:     "ORD-1",
		BuyerID:     buyer.ID,
		Schedule:    twoLevelSchedule(t),
		BuyerReward: 4,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.EntriesCreated)
	assert.Equal(t, int64(4), result.TotalDistributed)
	assert.Equal(t, int64(4), f.reload(t, buyer.ID).TotalPoints)
}

func TestCommissionService_Distribute_LedgerSumMatchesTotal(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixtures(t)
	f.expectCommitHooks()
	nodes := f.chain(t, 6)

	schedule, err := entity.ScheduleFromLevels(map[int]int64{1: 9, 2: 0, 3: 4, 4: 3, 7: 100})
	require.NoError(t, err)

	result, err := f.commissionService(nil).Distribute(ctx, &usecase.DistributeInput{
		OrderID:     "ORD-SUM",
		BuyerID:     nodes[5].ID,
		Schedule:    schedule,
		BuyerReward: 1,
	})
	require.NoError(t, err)

	entries, err := f.commissions.FindByOrder(ctx, "ORD-SUM")
	require.NoError(t, err)

	var sum int64
	levels := make([]int, 0, len(entries))
	for _, entry := range entries {
		sum += entry.Points
		levels = append(levels, entry.Level)
	}
	assert.Equal(t, result.TotalDistributed, sum)
	assert.Equal(t, int64(1+9+4+3), sum)
	// Zero-point tiers and levels beyond the root produce no entry.
	assert.Equal(t, []int{0, 1, 3, 4}, levels)
}

func TestCommissionService_Distribute_RerunIsNoOp(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixtures(t)
	f.expectCommitHooks()
	nodes := f.chain(t, 3)
	svc := f.commissionService(nil)

	input := func() *usecase.DistributeInput {
		return &usecase.DistributeInput{
			OrderID:     "ORD-1",
			BuyerID:     nodes[2].ID,
			Schedule:    twoLevelSchedule(t),
			BuyerReward: 2,
		}
	}

	_, err := svc.Distribute(ctx, input())
	require.NoError(t, err)

	again, err := svc.Distribute(ctx, input())
	require.NoError(t, err)
	assert.Zero(t, again.TotalDistributed)
	assert.Zero(t, again.EntriesCreated)
	assert.Equal(t, 3, again.EntriesSkipped)

	assert.Equal(t, int64(2), f.reload(t, nodes[2].ID).TotalPoints)
	assert.Equal(t, int64(10), f.reload(t, nodes[1].ID).TotalPoints)
	assert.Equal(t, int64(5), f.reload(t, nodes[0].ID).TotalPoints)

	entries, err := f.commissions.FindByOrder(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	assert.Equal(t, 1, f.metrics.distributions[service.DistributionResultDuplicate])
	f.publisher.AssertNumberOfCalls(t, "PublishCommissionDistributed", 1)
}

func TestCommissionService_Distribute_RollsBackOnMidwayFailure(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixtures(t)
	nodes := f.chain(t, 3)

	failOn, calls := 3, 0
	svc := f.commissionService(&hookedTxManager{
		inner: f.txManager,
		wrapCommissions: func(repo repository.CommissionRepository) repository.CommissionRepository {
			return &failingCommissionRepo{CommissionRepository: repo, failOn: &failOn, calls: &calls}
		},
	})

	_, err := svc.Distribute(ctx, &usecase.DistributeInput{
		OrderID:     "ORD-1",
		BuyerID:     nodes[2].ID,
		Schedule:    twoLevelSchedule(t),
		BuyerReward: 2,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrStoreUnavailable)

	for _, node := range nodes {
		assert.Zero(t, f.reload(t, node.ID).TotalPoints)
	}
	entries, err := f.commissions.FindByOrder(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.Equal(t, 1, f.metrics.distributions[service.DistributionResultFailed])
	f.publisher.AssertNotCalled(t, "PublishCommissionDistributed", mock.Anything, mock.Anything)
}

func TestCommissionService_Distribute_PublishFailureKeepsCredits(t *testing.T) {
	f := newEngineFixtures(t)
	f.cache.On("Invalidate", mock.Anything, mock.Anything).Return(errors.New("redis down"))
	f.publisher.On("PublishCommissionDistributed", mock.Anything, mock.Anything).Return(errors.New("topic missing"))
	nodes := f.chain(t, 2)

	result, err := f.commissionService(nil).Distribute(context.Background(), &usecase.DistributeInput{
		OrderID:  "ORD-1",
		BuyerID:  nodes[1].ID,
		Schedule: twoLevelSchedule(t),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), result.TotalDistributed)
	assert.Equal(t, int64(10), f.reload(t, nodes[0].ID).TotalPoints)
}

func TestCommissionService_Distribute_Rejects(t *testing.T) {
	f := newEngineFixtures(t)
	svc := f.commissionService(nil)
	buyer := f.newParticipant(t, "BUYER001")

	tests := []struct {
		name    string
		input   *usecase.DistributeInput
		wantErr error
	}{
		{name: "nil input", input: nil, wantErr: domainerrors.ErrInvalidDistribution},
		{name: "blank order id", input: &usecase.DistributeInput{OrderID: "  ", BuyerID: buyer.ID}, wantErr: domainerrors.ErrInvalidDistribution},
		{name: "order id too long", input: &usecase.DistributeInput{OrderID: string(make([]byte, 65)), BuyerID: buyer.ID}, wantErr: domainerrors.ErrInvalidDistribution},
		{name: "missing buyer id", input: &usecase.DistributeInput{OrderID: "ORD-1"}, wantErr: domainerrors.ErrInvalidDistribution},
		{name: "negative reward", input: &usecase.DistributeInput{OrderID: "ORD-1", BuyerID: buyer.ID, BuyerReward: -1}, wantErr: domainerrors.ErrInvalidDistribution},
		{name: "unknown buyer", input: &usecase.DistributeInput{OrderID: "ORD-1", BuyerID: uuid.New(), BuyerReward: 1}, wantErr: domainerrors.ErrParticipantNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Distribute(context.Background(), tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Equal(t, 5, f.metrics.distributions[service.DistributionResultRejected])
}

func TestCommissionService_Distribute_TrimsOrderIDWithoutTouchingInput(t *testing.T) {
	f := newEngineFixtures(t)
	f.expectCommitHooks()
	nodes := f.chain(t, 2)

	input := &usecase.DistributeInput{OrderID: "  ORD-TRIM ", BuyerID: nodes[1].ID, Schedule: twoLevelSchedule(t)}
	result, err := f.commissionService(nil).Distribute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, "ORD-TRIM", result.OrderID)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, "ORD-TRIM", result.Entries[0].OrderID)
	assert.Equal(t, "  ORD-TRIM ", input.OrderID)
}

// seedLedger gives parent three level-1 entries of 10 points: one paid, one pending, one cancelled.
func seedLedger(t *testing.T, f *engineFixtures) (parent, buyer *entity.Participant) {
	t.Helper()

	f.expectCommitHooks()
	nodes := f.chain(t, 2)
	parent, buyer = nodes[0], nodes[1]

	schedule, err := entity.ScheduleFromLevels(map[int]int64{1: 10})
	require.NoError(t, err)

	svc := f.commissionService(nil)
	for _, orderID := range []string{"ORD-PAID", "ORD-PENDING", "ORD-CANCELLED"} {
		_, err := svc.Distribute(context.Background(), &usecase.DistributeInput{
			OrderID:  orderID,
			BuyerID:  buyer.ID,
			Schedule: schedule,
		})
		require.NoError(t, err)
	}

	require.NoError(t, f.db.Exec("UPDATE commission_entries SET status = ? WHERE order_id = ?", "paid", "ORD-PAID").Error)
	require.NoError(t, f.db.Exec("UPDATE commission_entries SET status = ? WHERE order_id = ?", "cancelled", "ORD-CANCELLED").Error)

	return parent, buyer
}

func TestCommissionService_Summary(t *testing.T) {
	f := newEngineFixtures(t)
	parent, _ := seedLedger(t, f)
	require.NoError(t, f.db.Exec(
		"UPDATE participants SET total_earnings = ?, pending_withdrawal = ?, withdrawn_amount = ? WHERE id = ?",
		5000, 1200, 800, parent.ID,
	).Error)

	f.cache.On("Get", mock.Anything, parent.ID).Return(nil, false, nil).Once()
	f.cache.On("Generation", mock.Anything, parent.ID).Return(int64(4), nil).Once()
	f.cache.On("Set", mock.Anything, mock.AnythingOfType("*entity.EarningsSummary"), int64(4)).Return(nil).Once()

	summary, err := f.commissionService(nil).Summary(context.Background(), parent.ID)
	require.NoError(t, err)

	assert.Equal(t, parent.ID, summary.ParticipantID)
	assert.Equal(t, int64(30), summary.TotalPoints)
	assert.Equal(t, int64(5000), summary.TotalEarnings)
	assert.Equal(t, int64(1200), summary.PendingWithdrawal)
	assert.Equal(t, int64(800), summary.WithdrawnAmount)
	assert.Equal(t, int64(10), summary.PaidCommissions)
	assert.Equal(t, int64(10), summary.PendingCommissions)
	assert.Equal(t, int64(10), summary.CancelledCommissions)
	assert.Equal(t, int64(20), summary.TotalCommissions)
	assert.Equal(t, int64(3), summary.EntryCount)
	f.cache.AssertExpectations(t)
}

func TestCommissionService_Summary_ServesCache(t *testing.T) {
	f := newEngineFixtures(t)
	id := uuid.New()
	cached := &entity.EarningsSummary{ParticipantID: id, TotalCommissions: 42}
	f.cache.On("Get", mock.Anything, id).Return(cached, true, nil).Once()

	summary, err := f.commissionService(nil).Summary(context.Background(), id)
	require.NoError(t, err)
	assert.Same(t, cached, summary)
	f.cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
}

func TestCommissionService_Summary_CacheErrorsFallThrough(t *testing.T) {
	f := newEngineFixtures(t)
	p := f.newParticipant(t, "SUMMARY1")
	f.cache.On("Get", mock.Anything, p.ID).Return(nil, false, errors.New("redis down")).Once()
	f.cache.On("Generation", mock.Anything, p.ID).Return(int64(0), nil).Once()
	f.cache.On("Set", mock.Anything, mock.Anything, int64(0)).Return(errors.New("redis down")).Once()

	summary, err := f.commissionService(nil).Summary(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Zero(t, summary.EntryCount)
}

func TestCommissionService_Summary_SkipsCacheWriteWithoutGeneration(t *testing.T) {
	f := newEngineFixtures(t)
	p := f.newParticipant(t, "SUMMARY2")
	f.cache.On("Get", mock.Anything, p.ID).Return(nil, false, nil).Once()
	f.cache.On("Generation", mock.Anything, p.ID).Return(int64(0), errors.New("redis down")).Once()

	summary, err := f.commissionService(nil).Summary(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, summary.ParticipantID)
	f.cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
}

// distributingCache commits a distribution right before the first summary write lands.
type distributingCache struct {
	service.SummaryCache
	distribute func()
	fired      bool
}

func (c *distributingCache) Set(ctx context.Context, summary *entity.EarningsSummary, generation int64) error {
	if !c.fired {
		c.fired = true
		c.distribute()
	}

	return c.SummaryCache.Set(ctx, summary, generation)
}

func TestCommissionService_Summary_DistributionDuringComputationIsNotCached(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixtures(t)
	f.publisher.On("PublishCommissionDistributed", mock.Anything, mock.Anything).Return(nil)
	nodes := f.chain(t, 2)
	parent, buyer := nodes[0], nodes[1]

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	summaryCache := &distributingCache{SummaryCache: cache.NewRedisSummaryCache(client, time.Hour)}
	svc := NewCommissionService(CommissionServiceParams{
		TxManager:       f.txManager,
		ParticipantRepo: f.participants,
		CommissionRepo:  f.commissions,
		Publisher:       f.publisher,
		SummaryCache:    summaryCache,
		Metrics:         f.metrics,
		Logger:          f.logger,
	})

	schedule, err := entity.ScheduleFromLevels(map[int]int64{1: 10})
	require.NoError(t, err)
	summaryCache.distribute = func() {
		_, err := svc.Distribute(ctx, &usecase.DistributeInput{OrderID: "ORD-RACE", BuyerID: buyer.ID, Schedule: schedule})
		require.NoError(t, err)
	}

	stale, err := svc.Summary(ctx, parent.ID)
	require.NoError(t, err)
	assert.Zero(t, stale.TotalPoints)

	summary, err := svc.Summary(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), summary.TotalPoints)
	assert.Equal(t, int64(10), summary.PendingCommissions)
	assert.Equal(t, int64(10), f.reload(t, parent.ID).TotalPoints)

	cached, ok, err := summaryCache.Get(ctx, parent.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(10), cached.TotalPoints)
}

func TestCommissionService_Summary_UnknownParticipant(t *testing.T) {
	f := newEngineFixtures(t)
	f.cache.On("Get", mock.Anything, mock.Anything).Return(nil, false, nil)
	f.cache.On("Generation", mock.Anything, mock.Anything).Return(int64(0), nil)

	_, err := f.commissionService(nil).Summary(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domainerrors.ErrParticipantNotFound)
}

func TestCommissionService_ListCommissions(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixtures(t)
	parent, _ := seedLedger(t, f)
	svc := f.commissionService(nil)

	page, err := svc.ListCommissions(ctx, parent.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Entries, 3)
	assert.Equal(t, defaultCommissionPageSize, page.Limit)

	paid, err := svc.ListCommissions(ctx, parent.ID, &usecase.CommissionQuery{Status: "PAID"})
	require.NoError(t, err)
	require.Len(t, paid.Entries, 1)
	assert.Equal(t, "ORD-PAID", paid.Entries[0].OrderID)

	capped, err := svc.ListCommissions(ctx, parent.ID, &usecase.CommissionQuery{Limit: 1000, Offset: -5})
	require.NoError(t, err)
	assert.Equal(t, maxCommissionPageSize, capped.Limit)
	assert.Zero(t, capped.Offset)

	second, err := svc.ListCommissions(ctx, parent.ID, &usecase.CommissionQuery{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, second.Entries, 1)

	_, err = svc.ListCommissions(ctx, parent.ID, &usecase.CommissionQuery{Status: "earned"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCommissionStatus)

	_, err = svc.ListCommissions(ctx, uuid.New(), nil)
	assert.ErrorIs(t, err, domainerrors.ErrParticipantNotFound)
}

func TestCommissionService_ListOrderCommissions(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixtures(t)
	f.expectCommitHooks()
	nodes := f.chain(t, 3)
	svc := f.commissionService(nil)

	_, err := svc.Distribute(ctx, &usecase.DistributeInput{
		OrderID:     "ORD-1",
		BuyerID:     nodes[2].ID,
		Schedule:    twoLevelSchedule(t),
		BuyerReward: 1,
	})
	require.NoError(t, err)

	entries, err := svc.ListOrderCommissions(ctx, " ORD-1 ")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{entries[0].Level, entries[1].Level, entries[2].Level})

	_, err = svc.ListOrderCommissions(ctx, "")
	assert.ErrorIs(t, err, domainerrors.ErrInvalidDistribution)
}
