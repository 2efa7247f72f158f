package impl

import (
	"context"
	"log/slog"

	"rewardnet/config"
	deliverycontext "rewardnet/internal/delivery/context"
	domainerrors "rewardnet/internal/domain/errors"
	"rewardnet/internal/domain/repository"
	"rewardnet/internal/usecase"
	"rewardnet/internal/util"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// identifierService implements the IdentifierUsecase interface.
type identifierService struct {
	participantRepo repository.ParticipantRepository
	nextCode        func() (string, error)
	nextMemberID    func() (string, error)
	maxAttempts     int
	logger          *slog.Logger
}

// IdentifierServiceParams holds dependencies for IdentifierService, injected by Fx.
type IdentifierServiceParams struct {
	fx.In

	ParticipantRepo repository.ParticipantRepository
	Config          *config.Config
	Logger          *slog.Logger
}

// NewIdentifierService creates a new identifier service instance
func NewIdentifierService(params IdentifierServiceParams) usecase.IdentifierUsecase {
	cfg := params.Config.Identifier

	return &identifierService{
		participantRepo: params.ParticipantRepo,
		nextCode: func() (string, error) {
			return util.RandomString(cfg.CodeAlphabet, cfg.CodeLength)
		},
		nextMemberID: func() (string, error) {
			digits, err := util.RandomDigits(cfg.MemberIDDigits)
			if err != nil {
				return "", err
			}

			return cfg.MemberIDPrefix + digits, nil
		},
		maxAttempts: cfg.MaxAttempts,
		logger:      params.Logger,
	}
}

func (s *identifierService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, s.logger)
}

// GenerateReferralCode returns an unused referral code
func (s *identifierService) GenerateReferralCode(ctx context.Context) (string, error) {
	return s.generate(ctx, "referral code", s.nextCode, s.participantRepo.ReferralCodeExists)
}

// GenerateMemberID returns an unused member id
func (s *identifierService) GenerateMemberID(ctx context.Context) (string, error) {
	return s.generate(ctx, "member id", s.nextMemberID, s.participantRepo.MemberIDExists)
}

// generate draws candidates until one is free. maxAttempts == 0 means no cap;
// cancelling ctx always ends the loop.
func (s *identifierService) generate(
	ctx context.Context,
	kind string,
	next func() (string, error),
	exists func(ctx context.Context, value string) (bool, error),
) (string, error) {
	for attempt := 1; s.maxAttempts == 0 || attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", errors.Wrapf(err, "generate %s", kind)
		}

		candidate, err := next()
		if err != nil {
			return "", errors.Wrapf(err, "generate %s", kind)
		}

		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", storeError(err, "check "+kind)
		}
		if !taken {
			return candidate, nil
		}

		s.log(ctx).Debug("Identifier collision, retrying",
			slog.String("kind", kind),
			slog.Int("attempt", attempt),
		)
	}

	return "", errors.Wrapf(domainerrors.ErrIdentifierExhausted, "%s after %d attempts", kind, s.maxAttempts)
}
