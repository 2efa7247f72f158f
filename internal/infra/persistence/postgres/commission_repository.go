package postgres

import (
	"context"

	"rewardnet/internal/domain/entity"
	domainerrors "rewardnet/internal/domain/errors"
	"rewardnet/internal/domain/repository"
	"rewardnet/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// commissionRepository implements the repository.CommissionRepository interface.
type commissionRepository struct {
	db *gorm.DB
}

// NewCommissionRepository is the constructor for commissionRepository.
func NewCommissionRepository(db *gorm.DB) repository.CommissionRepository {
	return &commissionRepository{
		db: db,
	}
}

// Create inserts the entry unless (order_id, participant_id, level) already exists.
func (repo *commissionRepository) Create(ctx context.Context, entry *entity.CommissionEntry) (bool, error) {
	entryM := fromCommissionDomain(entry)

	result := repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "order_id"},
				{Name: "participant_id"},
				{Name: "level"},
			},
			DoNothing: true,
		}).
		Create(entryM)
	if result.Error != nil {
		return false, domainerrors.NewDatabaseExecuteError(result.Error, "failed to create commission entry")
	}

	if result.RowsAffected == 0 {
		return false, nil
	}

	entry.ID = entryM.ID
	entry.Status = entity.CommissionStatus(entryM.Status)
	entry.CreatedAt = entryM.CreatedAt
	entry.UpdatedAt = entryM.UpdatedAt

	return true, nil
}

// FindByOrder returns every entry of an order, buyer reward first.
func (repo *commissionRepository) FindByOrder(ctx context.Context, orderID string) ([]*entity.CommissionEntry, error) {
	var entryModels []*model.CommissionEntryModel

	if err := repo.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("level ASC").
		Order("created_at ASC").
		Find(&entryModels).Error; err != nil {
		return nil, errors.Wrap(err, "failed to find commission entries by order")
	}

	return toCommissionDomains(entryModels), nil
}

// FindByParticipant returns a page of the participant's entries, newest first.
func (repo *commissionRepository) FindByParticipant(ctx context.Context, participantID uuid.UUID, filter repository.CommissionFilter) ([]*entity.CommissionEntry, int64, error) {
	query := repo.db.WithContext(ctx).
		Model(&model.CommissionEntryModel{}).
		Where("participant_id = ?", participantID)
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to count commission entries")
	}

	page := query.Order("created_at DESC").Order("id DESC")
	if filter.Limit > 0 {
		page = page.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		page = page.Offset(filter.Offset)
	}

	var entryModels []*model.CommissionEntryModel
	if err := page.Find(&entryModels).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to find commission entries by participant")
	}

	return toCommissionDomains(entryModels), total, nil
}

type statusTotalsRow struct {
	Status string
	Points int64
	Count  int64
}

// SumByStatus aggregates the participant's entries per status.
func (repo *commissionRepository) SumByStatus(ctx context.Context, participantID uuid.UUID) (map[entity.CommissionStatus]entity.CommissionTotals, error) {
	var rows []statusTotalsRow

	if err := repo.db.WithContext(ctx).
		Model(&model.CommissionEntryModel{}).
		Select("status, COALESCE(SUM(points), 0) AS points, COUNT(*) AS count").
		Where("participant_id = ?", participantID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "failed to sum commission entries by status")
	}

	totals := make(map[entity.CommissionStatus]entity.CommissionTotals, len(rows))
	for _, row := range rows {
		totals[entity.CommissionStatus(row.Status)] = entity.CommissionTotals{
			Points: row.Points,
			Count:  row.Count,
		}
	}

	return totals, nil
}

func toCommissionDomains(entryModels []*model.CommissionEntryModel) []*entity.CommissionEntry {
	entries := make([]*entity.CommissionEntry, 0, len(entryModels))
	for _, entryM := range entryModels {
		entries = append(entries, toCommissionDomain(entryM))
	}

	return entries
}

func toCommissionDomain(data *model.CommissionEntryModel) *entity.CommissionEntry {
	if data == nil {
		return nil
	}

	return &entity.CommissionEntry{
		ID:                data.ID,
		ParticipantID:     data.ParticipantID,
		FromParticipantID: data.FromParticipantID,
		OrderID:           data.OrderID,
		ProductID:         data.ProductID,
		Level:             data.Level,
		Points:            data.Points,
		Status:            entity.CommissionStatus(data.Status),
		CreatedAt:         data.CreatedAt,
		UpdatedAt:         data.UpdatedAt,
	}
}

func fromCommissionDomain(data *entity.CommissionEntry) *model.CommissionEntryModel {
	if data == nil {
		return nil
	}

	status := data.Status
	if status == "" {
		status = entity.CommissionStatusPending
	}

	return &model.CommissionEntryModel{
		ID:                data.ID,
		OrderID:           data.OrderID,
		ParticipantID:     data.ParticipantID,
		Level:             data.Level,
		FromParticipantID: data.FromParticipantID,
		ProductID:         data.ProductID,
		Points:            data.Points,
		Status:            string(status),
		CreatedAt:         data.CreatedAt,
		UpdatedAt:         data.UpdatedAt,
	}
}
