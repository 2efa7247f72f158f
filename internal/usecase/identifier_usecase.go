package usecase

import "context"

// IdentifierUsecase mints identifiers that do not collide with any existing participant.
type IdentifierUsecase interface {
	// GenerateReferralCode returns an unused referral code drawn from the configured alphabet
	GenerateReferralCode(ctx context.Context) (string, error)

	// GenerateMemberID returns an unused prefixed numeric member id, e.g. "RN04182736"
	GenerateMemberID(ctx context.Context) (string, error)
}
