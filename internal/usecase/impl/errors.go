package impl

import (
	domainerrors "rewardnet/internal/domain/errors"
	"rewardnet/internal/domain/repository"
	"rewardnet/internal/errors"
)

// storeError keeps domain errors as they are and classifies every other persistence failure
// as ErrStoreUnavailable, which callers may retry.
func storeError(err error, msg string) error {
	var baseErr *domainerrors.BaseError
	if errors.As(err, &baseErr) {
		return err
	}

	return errors.Wrapf(domainerrors.ErrStoreUnavailable, "%s: %v", msg, err)
}

// participantError maps a participant lookup failure onto the domain taxonomy.
func participantError(err error, msg string) error {
	if errors.Is(err, repository.ErrParticipantNotFound) {
		return errors.Wrap(domainerrors.ErrParticipantNotFound, msg)
	}

	return storeError(err, msg)
}
