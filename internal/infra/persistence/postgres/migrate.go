package postgres

import (
	"rewardnet/internal/errors"
	"rewardnet/internal/infra/persistence/model"

	"gorm.io/gorm"
)

// Models lists every table owned by the engine, in creation order.
func Models() []any {
	return []any{
		&model.ParticipantModel{},
		&model.CommissionEntryModel{},
	}
}

// Migrate creates or updates the engine's tables and indexes.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return errors.Wrap(err, "failed to migrate schema")
	}

	return nil
}
