package entity

import (
	"slices"

	"rewardnet/internal/domain/constants"
	"rewardnet/internal/errors"
)

// ErrInvalidSchedule is returned when a commission schedule fails boundary validation.
var ErrInvalidSchedule = errors.New("invalid commission schedule")

// CommissionTier awards Points to the ancestor at distance Level from the buyer.
type CommissionTier struct {
	Level  int   `json:"level" validate:"min=1,max=20"`
	Points int64 `json:"points" validate:"min=0"`
}

// CommissionSchedule is a validated, level-ordered table of commission tiers.
// The zero value is an empty schedule.
type CommissionSchedule struct {
	tiers []CommissionTier
}

// NewCommissionSchedule validates the tiers and returns them ordered by ascending level.
// Levels must lie in 1..MaxCommissionLevel, appear at most once, and carry non-negative points.
func NewCommissionSchedule(tiers []CommissionTier) (CommissionSchedule, error) {
	if len(tiers) > constants.MaxCommissionLevel {
		return CommissionSchedule{}, errors.Wrapf(ErrInvalidSchedule, "%d tiers configured, at most %d allowed", len(tiers), constants.MaxCommissionLevel)
	}

	seen := make(map[int]struct{}, len(tiers))
	ordered := make([]CommissionTier, 0, len(tiers))
	for _, tier := range tiers {
		if tier.Level < 1 || tier.Level > constants.MaxCommissionLevel {
			return CommissionSchedule{}, errors.Wrapf(ErrInvalidSchedule, "level %d outside 1..%d", tier.Level, constants.MaxCommissionLevel)
		}
		if tier.Points < 0 {
			return CommissionSchedule{}, errors.Wrapf(ErrInvalidSchedule, "level %d has negative points %d", tier.Level, tier.Points)
		}
		if _, dup := seen[tier.Level]; dup {
			return CommissionSchedule{}, errors.Wrapf(ErrInvalidSchedule, "level %d configured twice", tier.Level)
		}
		seen[tier.Level] = struct{}{}
		ordered = append(ordered, tier)
	}

	slices.SortFunc(ordered, func(a, b CommissionTier) int {
		return a.Level - b.Level
	})

	return CommissionSchedule{tiers: ordered}, nil
}

// ScheduleFromLevels builds a schedule from a level -> points mapping.
func ScheduleFromLevels(levels map[int]int64) (CommissionSchedule, error) {
	tiers := make([]CommissionTier, 0, len(levels))
	for level, points := range levels {
		tiers = append(tiers, CommissionTier{Level: level, Points: points})
	}

	return NewCommissionSchedule(tiers)
}

// Tiers returns a copy of the tiers in ascending level order.
func (s CommissionSchedule) Tiers() []CommissionTier {
	return slices.Clone(s.tiers)
}

// IsEmpty reports whether no tier is configured.
func (s CommissionSchedule) IsEmpty() bool {
	return len(s.tiers) == 0
}

// DeepestLevel returns the highest configured level, or 0 for an empty schedule.
func (s CommissionSchedule) DeepestLevel() int {
	if len(s.tiers) == 0 {
		return 0
	}

	return s.tiers[len(s.tiers)-1].Level
}

// PointsAt returns the points configured for a level.
func (s CommissionSchedule) PointsAt(level int) (int64, bool) {
	for _, tier := range s.tiers {
		if tier.Level == level {
			return tier.Points, true
		}
	}

	return 0, false
}
