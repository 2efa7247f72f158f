package impl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"rewardnet/config"
	"rewardnet/internal/domain/entity"
	"rewardnet/internal/domain/repository"
	"rewardnet/internal/domain/service"
	"rewardnet/internal/infra/persistence/postgres"
	"rewardnet/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// engineFixtures wires the services against an in-memory SQLite store.
type engineFixtures struct {
	db           *gorm.DB
	txManager    repository.TransactionManager
	participants repository.ParticipantRepository
	commissions  repository.CommissionRepository
	metrics      *recordingMetrics
	publisher    *mockPublisher
	cache        *mockSummaryCache
	cfg          *config.Config
	logger       *slog.Logger
}

func newEngineFixtures(t *testing.T) *engineFixtures {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := postgres.OpenSQLite(dsn)
	require.NoError(t, err)
	require.NoError(t, postgres.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	cfg := &config.Config{}
	cfg.ApplyDefaults()

	return &engineFixtures{
		db:           db,
		txManager:    postgres.NewTransactionManager(db),
		participants: postgres.NewParticipantRepository(db),
		commissions:  postgres.NewCommissionRepository(db),
		metrics:      &recordingMetrics{placements: map[string]int{}, distributions: map[string]int{}},
		publisher:    &mockPublisher{},
		cache:        &mockSummaryCache{},
		cfg:          cfg,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func (f *engineFixtures) identifiers() usecase.IdentifierUsecase {
	return NewIdentifierService(IdentifierServiceParams{
		ParticipantRepo: f.participants,
		Config:          f.cfg,
		Logger:          f.logger,
	})
}

func (f *engineFixtures) networkService(txManager repository.TransactionManager) *networkService {
	if txManager == nil {
		txManager = f.txManager
	}

	svc := NewNetworkService(NetworkServiceParams{
		TxManager:       txManager,
		ParticipantRepo: f.participants,
		Identifiers:     f.identifiers(),
		Metrics:         f.metrics,
		Config:          f.cfg,
		Logger:          f.logger,
	})

	return svc.(*networkService)
}

func (f *engineFixtures) commissionService(txManager repository.TransactionManager) usecase.CommissionUsecase {
	if txManager == nil {
		txManager = f.txManager
	}

	return NewCommissionService(CommissionServiceParams{
		TxManager:       txManager,
		ParticipantRepo: f.participants,
		CommissionRepo:  f.commissions,
		Publisher:       f.publisher,
		SummaryCache:    f.cache,
		Metrics:         f.metrics,
		Logger:          f.logger,
	})
}

// newParticipant stores an unplaced participant with a predictable referral code.
func (f *engineFixtures) newParticipant(t *testing.T, code string) *entity.Participant {
	t.Helper()

	participant := &entity.Participant{
		MemberID:     "RN" + code,
		ReferralCode: code,
		IsActive:     true,
	}
	require.NoError(t, f.participants.Create(context.Background(), participant))

	return participant
}

func (f *engineFixtures) reload(t *testing.T, id uuid.UUID) *entity.Participant {
	t.Helper()

	participant, err := f.participants.FindByID(context.Background(), id)
	require.NoError(t, err)

	return participant
}

// chain builds a straight line of left children, root first.
func (f *engineFixtures) chain(t *testing.T, length int) []*entity.Participant {
	t.Helper()

	svc := f.networkService(nil)
	nodes := make([]*entity.Participant, 0, length)
	for i := range length {
		node := f.newParticipant(t, fmt.Sprintf("CHAIN%03d", i))
		if i > 0 {
			_, err := svc.Place(context.Background(), node.ID, nodes[i-1].ReferralCode)
			require.NoError(t, err)
		}
		nodes = append(nodes, node)
	}

	return nodes
}

// recordingMetrics counts observations; safe for concurrent placements.
type recordingMetrics struct {
	mu            sync.Mutex
	placements    map[string]int
	conflicts     int
	distributions map[string]int
	credits       int
}

func (m *recordingMetrics) ObservePlacement(result string, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.placements[result]++
}

func (m *recordingMetrics) ObserveSlotConflict() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts++
}

func (m *recordingMetrics) ObserveDistribution(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.distributions[result]++
}

func (m *recordingMetrics) ObserveCredit(int, int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credits++
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishCommissionDistributed(ctx context.Context, event *service.CommissionDistributedEvent) error {
	args := m.Called(ctx, event)

	return args.Error(0)
}

func (m *mockPublisher) Close() error {
	return m.Called().Error(0)
}

type mockSummaryCache struct {
	mock.Mock
}

func (m *mockSummaryCache) Get(ctx context.Context, participantID uuid.UUID) (*entity.EarningsSummary, bool, error) {
	args := m.Called(ctx, participantID)
	summary, _ := args.Get(0).(*entity.EarningsSummary)

	return summary, args.Bool(1), args.Error(2)
}

func (m *mockSummaryCache) Generation(ctx context.Context, participantID uuid.UUID) (int64, error) {
	args := m.Called(ctx, participantID)

	return args.Get(0).(int64), args.Error(1)
}

func (m *mockSummaryCache) Set(ctx context.Context, summary *entity.EarningsSummary, generation int64) error {
	return m.Called(ctx, summary, generation).Error(0)
}

func (m *mockSummaryCache) Invalidate(ctx context.Context, participantIDs ...uuid.UUID) error {
	return m.Called(ctx, participantIDs).Error(0)
}

// hookedTxManager runs the real transaction but lets a test intercept the repositories handed to fn.
type hookedTxManager struct {
	inner            repository.TransactionManager
	wrapParticipants func(repository.ParticipantRepository) repository.ParticipantRepository
	wrapCommissions  func(repository.CommissionRepository) repository.CommissionRepository
}

func (m *hookedTxManager) Execute(ctx context.Context, fn func(repoFactory repository.RepositoryFactory) error) error {
	return m.inner.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		return fn(&hookedFactory{RepositoryFactory: repoFactory, manager: m})
	})
}

type hookedFactory struct {
	repository.RepositoryFactory
	manager *hookedTxManager
}

func (f *hookedFactory) NewParticipantRepository() repository.ParticipantRepository {
	repo := f.RepositoryFactory.NewParticipantRepository()
	if f.manager.wrapParticipants != nil {
		return f.manager.wrapParticipants(repo)
	}

	return repo
}

func (f *hookedFactory) NewCommissionRepository() repository.CommissionRepository {
	repo := f.RepositoryFactory.NewCommissionRepository()
	if f.manager.wrapCommissions != nil {
		return f.manager.wrapCommissions(repo)
	}

	return repo
}

// racingParticipantRepo calls beforeAssign ahead of every AssignChild.
type racingParticipantRepo struct {
	repository.ParticipantRepository
	beforeAssign func(ctx context.Context, repo repository.ParticipantRepository, parentID uuid.UUID, slot entity.Slot) error
}

func (r *racingParticipantRepo) AssignChild(ctx context.Context, parentID uuid.UUID, slot entity.Slot, childID uuid.UUID) error {
	if r.beforeAssign != nil {
		if err := r.beforeAssign(ctx, r.ParticipantRepository, parentID, slot); err != nil {
			return err
		}
	}

	return r.ParticipantRepository.AssignChild(ctx, parentID, slot, childID)
}

// failingCommissionRepo fails the nth Create call.
type failingCommissionRepo struct {
	repository.CommissionRepository
	failOn *int
	calls  *int
}

func (r *failingCommissionRepo) Create(ctx context.Context, entry *entity.CommissionEntry) (bool, error) {
	*r.calls++
	if *r.calls == *r.failOn {
		return false, errors.New("connection reset")
	}

	return r.CommissionRepository.Create(ctx, entry)
}
