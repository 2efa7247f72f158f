package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CommissionEntryModel mirrors the 'commission_entries' table.
// One row per (order, receiving participant, level); the composite unique index makes
// re-running a distribution for the same order a no-op.
type CommissionEntryModel struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrderID           string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_commission_entries_order_participant_level,priority:1"`
	ParticipantID     uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_commission_entries_order_participant_level,priority:2"`
	Level             int       `gorm:"not null;uniqueIndex:idx_commission_entries_order_participant_level,priority:3"`
	FromParticipantID uuid.UUID `gorm:"type:uuid;not null;index"`
	ProductID         string    `gorm:"type:varchar(64)"`
	Points            int64     `gorm:"not null"`
	Status            string    `gorm:"type:varchar(16);not null;default:'pending';index"`
	CreatedAt         time.Time `gorm:"index"`
	UpdatedAt         time.Time
}

// TableName explicitly sets the table name for GORM.
func (CommissionEntryModel) TableName() string {
	return "commission_entries"
}

// BeforeCreate assigns a time-ordered id when the caller did not supply one.
func (m *CommissionEntryModel) BeforeCreate(_ *gorm.DB) error {
	if m.ID != uuid.Nil {
		return nil
	}

	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	m.ID = id

	return nil
}
