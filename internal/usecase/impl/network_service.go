// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"rewardnet/config"
	deliverycontext "rewardnet/internal/delivery/context"
	"rewardnet/internal/domain/entity"
	domainerrors "rewardnet/internal/domain/errors"
	"rewardnet/internal/domain/repository"
	"rewardnet/internal/domain/service"
	"rewardnet/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// registerAttempts bounds how often Register re-mints identifiers after losing a uniqueness race.
const registerAttempts = 3

// networkService implements the NetworkUsecase interface.
type networkService struct {
	txManager        repository.TransactionManager
	participantRepo  repository.ParticipantRepository
	identifiers      usecase.IdentifierUsecase
	metrics          service.NetworkMetrics
	placementRetries int
	maxUplineLevels  int
	maxDownlineDepth int
	now              func() time.Time
	logger           *slog.Logger
}

// NetworkServiceParams holds dependencies for NetworkService, injected by Fx.
type NetworkServiceParams struct {
	fx.In

	TxManager       repository.TransactionManager
	ParticipantRepo repository.ParticipantRepository
	Identifiers     usecase.IdentifierUsecase
	Metrics         service.NetworkMetrics
	Config          *config.Config
	Logger          *slog.Logger
}

// NewNetworkService creates a new network service instance
func NewNetworkService(params NetworkServiceParams) usecase.NetworkUsecase {
	return &networkService{
		txManager:        params.TxManager,
		participantRepo:  params.ParticipantRepo,
		identifiers:      params.Identifiers,
		metrics:          params.Metrics,
		placementRetries: params.Config.Network.PlacementRetries,
		maxUplineLevels:  params.Config.Network.MaxUplineLevels,
		maxDownlineDepth: params.Config.Network.MaxDownlineDepth,
		now:              time.Now,
		logger:           params.Logger,
	}
}

func (s *networkService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, s.logger)
}

// Register creates a participant and optionally places it, all in one transaction.
func (s *networkService) Register(ctx context.Context, input *usecase.RegisterInput) (*usecase.Registration, error) {
	sponsorCode := strings.TrimSpace(input.SponsorCode)

	for attempt := 1; attempt <= registerAttempts; attempt++ {
		memberID, err := s.identifiers.GenerateMemberID(ctx)
		if err != nil {
			return nil, err
		}
		referralCode, err := s.identifiers.GenerateReferralCode(ctx)
		if err != nil {
			return nil, err
		}

		registration := &usecase.Registration{}
		err = s.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
			participantRepo := repoFactory.NewParticipantRepository()

			participant := &entity.Participant{
				MemberID:     memberID,
				ReferralCode: referralCode,
				DisplayName:  strings.TrimSpace(input.DisplayName),
				IsActive:     true,
			}
			if err := participantRepo.Create(ctx, participant); err != nil {
				return err
			}

			if sponsorCode != "" {
				placement, err := s.placeInTx(ctx, participantRepo, participant.ID, sponsorCode)
				if err != nil {
					return err
				}
				registration.Placement = placement

				if participant, err = participantRepo.FindByID(ctx, participant.ID); err != nil {
					return err
				}
			}
			registration.Participant = participant

			return nil
		})

		if errors.Is(err, repository.ErrDuplicateParticipant) {
			s.log(ctx).Warn("Identifier taken during registration, re-minting", slog.Int("attempt", attempt))

			continue
		}
		if sponsorCode != "" {
			s.observePlacement(registration.Placement, err)
		}
		if err != nil {
			return nil, placementError(err, "register participant")
		}

		s.log(ctx).Info("Participant registered",
			slog.String("participant_id", registration.Participant.ID.String()),
			slog.String("member_id", registration.Participant.MemberID),
			slog.Bool("placed", registration.Placement != nil),
		)

		return registration, nil
	}

	return nil, errors.Wrap(domainerrors.ErrIdentifierExhausted, "identifiers kept colliding during registration")
}

// Place attaches an unplaced participant under the sponsor's subtree.
func (s *networkService) Place(ctx context.Context, participantID uuid.UUID, sponsorCode string) (*entity.Placement, error) {
	var placement *entity.Placement
	err := s.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		var err error
		placement, err = s.placeInTx(ctx, repoFactory.NewParticipantRepository(), participantID, strings.TrimSpace(sponsorCode))

		return err
	})
	s.observePlacement(placement, err)
	if err != nil {
		return nil, placementError(err, "place participant")
	}

	s.log(ctx).Info("Participant placed",
		slog.String("participant_id", placement.ParticipantID.String()),
		slog.String("parent_id", placement.ParentID.String()),
		slog.String("slot", string(placement.Slot)),
		slog.Int("depth", placement.Depth),
		slog.Int("attempts", placement.Attempts),
	)

	return placement, nil
}

// placeInTx runs the spillover placement with repositories bound to the caller's transaction.
// A lost slot race restarts the scan, at most placementRetries times.
func (s *networkService) placeInTx(ctx context.Context, repo repository.ParticipantRepository, participantID uuid.UUID, sponsorCode string) (*entity.Placement, error) {
	if sponsorCode == "" {
		return nil, errors.Wrap(domainerrors.ErrUnknownSponsor, "sponsor code is empty")
	}

	sponsor, err := repo.FindByReferralCode(ctx, sponsorCode)
	if errors.Is(err, repository.ErrParticipantNotFound) {
		return nil, errors.Wrapf(domainerrors.ErrUnknownSponsor, "sponsor code %s", sponsorCode)
	}
	if err != nil {
		return nil, err
	}

	newcomer, err := repo.FindByID(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if newcomer.IsPlaced() {
		return nil, errors.Wrapf(domainerrors.ErrAlreadyPlaced, "participant %s", participantID)
	}
	if sponsor.ID == newcomer.ID {
		return nil, errors.Wrapf(domainerrors.ErrSelfSponsor, "participant %s", participantID)
	}
	if newcomer.HasChildren() {
		return nil, errors.Wrapf(domainerrors.ErrNotALeaf, "participant %s", participantID)
	}

	for attempt := 1; attempt <= s.placementRetries+1; attempt++ {
		target, err := findOpenSlot(ctx, repo, sponsor.ID)
		if errors.Is(err, errNoOpenSlot) {
			return nil, errors.Wrapf(domainerrors.ErrTreeFull, "sponsor %s", sponsor.ID)
		}
		if err != nil {
			return nil, err
		}

		err = repo.AssignChild(ctx, target.parent.ID, target.slot, newcomer.ID)
		if errors.Is(err, repository.ErrSlotTaken) || errors.Is(err, repository.ErrParticipantNotFound) {
			s.metrics.ObserveSlotConflict()
			s.log(ctx).Debug("Slot taken by concurrent placement, rescanning",
				slog.String("parent_id", target.parent.ID.String()),
				slog.String("slot", string(target.slot)),
				slog.Int("attempt", attempt),
			)

			continue
		}
		if err != nil {
			return nil, err
		}

		placement := &entity.Placement{
			ParticipantID: newcomer.ID,
			SponsorID:     sponsor.ID,
			ParentID:      target.parent.ID,
			Slot:          target.slot,
			Depth:         target.depth,
			Attempts:      attempt,
			PlacedAt:      s.now().UTC(),
		}
		if err := repo.SetParent(ctx, placement); err != nil {
			return nil, err
		}

		return placement, nil
	}

	return nil, errors.Wrapf(domainerrors.ErrPlacementFailed, "%d scans lost their slot", s.placementRetries+1)
}

func (s *networkService) observePlacement(placement *entity.Placement, err error) {
	switch {
	case err == nil && placement != nil:
		s.metrics.ObservePlacement(service.PlacementResultPlaced, placement.Attempts)
	case errors.Is(err, domainerrors.ErrUnknownSponsor):
		s.metrics.ObservePlacement(service.PlacementResultUnknownSponsor, 0)
	case errors.Is(err, domainerrors.ErrAlreadyPlaced), errors.Is(err, repository.ErrAlreadyPlaced):
		s.metrics.ObservePlacement(service.PlacementResultAlreadyPlaced, 0)
	case errors.Is(err, domainerrors.ErrTreeFull):
		s.metrics.ObservePlacement(service.PlacementResultTreeFull, 0)
	case errors.Is(err, domainerrors.ErrSelfSponsor), errors.Is(err, domainerrors.ErrNotALeaf):
		s.metrics.ObservePlacement(service.PlacementResultRejected, 0)
	case err != nil:
		s.metrics.ObservePlacement(service.PlacementResultFailed, 0)
	}
}

// placementError maps repository sentinels surfacing from a placement transaction onto the domain taxonomy.
func placementError(err error, msg string) error {
	switch {
	case errors.Is(err, repository.ErrAlreadyPlaced):
		return errors.Wrap(domainerrors.ErrAlreadyPlaced, msg)
	case errors.Is(err, repository.ErrSlotTaken):
		return errors.Wrap(domainerrors.ErrPlacementFailed, msg)
	default:
		return participantError(err, msg)
	}
}

// GetParticipant retrieves a participant by internal id
func (s *networkService) GetParticipant(ctx context.Context, participantID uuid.UUID) (*entity.Participant, error) {
	participant, err := s.participantRepo.FindByID(ctx, participantID)
	if err != nil {
		return nil, participantError(err, "get participant")
	}

	return participant, nil
}

// GetParticipantByCode retrieves a participant by referral code
func (s *networkService) GetParticipantByCode(ctx context.Context, code string) (*entity.Participant, error) {
	participant, err := s.participantRepo.FindByReferralCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, participantError(err, "get participant by referral code")
	}

	return participant, nil
}

// GetParticipantByMemberID retrieves a participant by member id
func (s *networkService) GetParticipantByMemberID(ctx context.Context, memberID string) (*entity.Participant, error) {
	participant, err := s.participantRepo.FindByMemberID(ctx, strings.TrimSpace(memberID))
	if err != nil {
		return nil, participantError(err, "get participant by member id")
	}

	return participant, nil
}

// Upline returns ancestors nearest-first
func (s *networkService) Upline(ctx context.Context, participantID uuid.UUID, maxLevel int) ([]*entity.Ancestor, error) {
	limit, err := walkLimit("max_level", maxLevel, s.maxUplineLevels)
	if err != nil {
		return nil, err
	}

	start, err := s.participantRepo.FindByID(ctx, participantID)
	if err != nil {
		return nil, participantError(err, "load upline start")
	}

	ancestors, err := walkUpline(ctx, s.participantRepo, start, limit)
	if err != nil {
		return nil, storeError(err, "walk upline")
	}

	return ancestors, nil
}

// DirectDownline returns the two immediate children; a dangling child reads as absent.
func (s *networkService) DirectDownline(ctx context.Context, participantID uuid.UUID) (*entity.DirectDownline, error) {
	participant, err := s.participantRepo.FindByID(ctx, participantID)
	if err != nil {
		return nil, participantError(err, "load downline root")
	}

	children, err := s.participantRepo.FindByIDs(ctx, participant.Children())
	if err != nil {
		return nil, storeError(err, "load direct downline")
	}

	downline := &entity.DirectDownline{}
	if participant.LeftChildID != nil {
		downline.Left = children[*participant.LeftChildID]
	}
	if participant.RightChildID != nil {
		downline.Right = children[*participant.RightChildID]
	}

	return downline, nil
}

// FullDownline returns all descendants breadth-first
func (s *networkService) FullDownline(ctx context.Context, participantID uuid.UUID, maxDepth int) ([]*entity.Descendant, error) {
	limit, err := walkLimit("max_depth", maxDepth, s.maxDownlineDepth)
	if err != nil {
		return nil, err
	}

	root, err := s.participantRepo.FindByID(ctx, participantID)
	if err != nil {
		return nil, participantError(err, "load downline root")
	}

	descendants, err := walkDownline(ctx, s.participantRepo, root, limit)
	if err != nil {
		return nil, storeError(err, "walk downline")
	}

	return descendants, nil
}

// walkLimit caps a requested walk length at the configured limit. Zero means an empty walk.
func walkLimit(name string, requested, limit int) (int, error) {
	if requested < 0 {
		return 0, errors.Wrap(domainerrors.ErrInvalidWalkLimit.WithDetails(name+" must not be negative"), "walk limit")
	}

	return min(requested, limit), nil
}
