package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ParticipantModel mirrors the 'participants' table.
// Tree links are plain id columns; (parent_id, position) is unique so a slot holds at most one child.
// It is an exported type so it can be used by the GORM Gen tool from other packages.
type ParticipantModel struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	MemberID     string     `gorm:"type:varchar(32);uniqueIndex;not null"`
	ReferralCode string     `gorm:"type:varchar(32);uniqueIndex;not null"`
	DisplayName  string     `gorm:"type:varchar(100)"`
	SponsorID    *uuid.UUID `gorm:"type:uuid;index"`
	ParentID     *uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_participants_parent_position"`
	Position     *string    `gorm:"type:varchar(8);uniqueIndex:idx_participants_parent_position"`
	LeftChildID  *uuid.UUID `gorm:"type:uuid;uniqueIndex"`
	RightChildID *uuid.UUID `gorm:"type:uuid;uniqueIndex"`

	TotalPoints       int64 `gorm:"not null;default:0"`
	TotalEarnings     int64 `gorm:"not null;default:0"`
	PendingWithdrawal int64 `gorm:"not null;default:0"`
	WithdrawnAmount   int64 `gorm:"not null;default:0"`

	IsActive  bool `gorm:"not null;default:true"`
	PlacedAt  *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName explicitly sets the table name for GORM.
func (ParticipantModel) TableName() string {
	return "participants"
}

// BeforeCreate assigns a time-ordered id when the caller did not supply one.
func (m *ParticipantModel) BeforeCreate(_ *gorm.DB) error {
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
