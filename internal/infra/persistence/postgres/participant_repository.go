package postgres

import (
	"context"
	"time"

	"rewardnet/internal/domain/entity"
	domainerrors "rewardnet/internal/domain/errors"
	"rewardnet/internal/domain/repository"
	"rewardnet/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

// participantRepository implements the repository.ParticipantRepository interface.
type participantRepository struct {
	db *gorm.DB
}

// NewParticipantRepository is the constructor for participantRepository.
func NewParticipantRepository(db *gorm.DB) repository.ParticipantRepository {
	return &participantRepository{
		db: db,
	}
}

// Create persists a new participant with no tree links.
func (repo *participantRepository) Create(ctx context.Context, participant *entity.Participant) error {
	participantM := fromParticipantDomain(participant)

	if err := repo.db.WithContext(ctx).Create(participantM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return repository.ErrDuplicateParticipant
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create participant")
	}

	participant.ID = participantM.ID
	participant.IsActive = participantM.IsActive
	participant.CreatedAt = participantM.CreatedAt
	participant.UpdatedAt = participantM.UpdatedAt

	return nil
}

// FindByID retrieves a participant by its internal id.
func (repo *participantRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Participant, error) {
	return repo.findOne(ctx, "id = ?", id)
}

// FindByIDs retrieves a batch of participants keyed by id.
func (repo *participantRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*entity.Participant, error) {
	found := make(map[uuid.UUID]*entity.Participant, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	var participantModels []*model.ParticipantModel
	if err := repo.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&participantModels).Error; err != nil {
		return nil, errors.Wrap(err, "failed to find participants by IDs")
	}

	for _, participantM := range participantModels {
		found[participantM.ID] = toParticipantDomain(participantM)
	}

	return found, nil
}

// FindByMemberID retrieves a participant by its external member id.
func (repo *participantRepository) FindByMemberID(ctx context.Context, memberID string) (*entity.Participant, error) {
	return repo.findOne(ctx, "member_id = ?", memberID)
}

// FindByReferralCode retrieves a participant by its referral code.
func (repo *participantRepository) FindByReferralCode(ctx context.Context, code string) (*entity.Participant, error) {
	return repo.findOne(ctx, "referral_code = ?", code)
}

func (repo *participantRepository) findOne(ctx context.Context, query string, arg any) (*entity.Participant, error) {
	var participantM model.ParticipantModel

	if err := repo.db.WithContext(ctx).
		Where(query, arg).
		First(&participantM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrParticipantNotFound
		}

		return nil, errors.Wrap(err, "failed to find participant")
	}

	return toParticipantDomain(&participantM), nil
}

// ReferralCodeExists checks the primary for a referral code collision.
func (repo *participantRepository) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	return repo.exists(ctx, "referral_code = ?", code)
}

// MemberIDExists checks the primary for a member id collision.
func (repo *participantRepository) MemberIDExists(ctx context.Context, memberID string) (bool, error) {
	return repo.exists(ctx, "member_id = ?", memberID)
}

// exists reads from the primary so a code minted moments ago on another node is not missed on a lagging replica.
func (repo *participantRepository) exists(ctx context.Context, query string, arg any) (bool, error) {
	var count int64

	if err := repo.db.WithContext(ctx).
		Clauses(dbresolver.Write).
		Model(&model.ParticipantModel{}).
		Where(query, arg).
		Count(&count).Error; err != nil {
		return false, errors.Wrap(err, "failed to check participant existence")
	}

	return count > 0, nil
}

// AssignChild sets the parent's slot only while it is still empty.
func (repo *participantRepository) AssignChild(ctx context.Context, parentID uuid.UUID, slot entity.Slot, childID uuid.UUID) error {
	column, err := childColumn(slot)
	if err != nil {
		return err
	}

	result := repo.db.WithContext(ctx).
		Model(&model.ParticipantModel{}).
		Where("id = ? AND "+column+" IS NULL", parentID).
		Update(column, childID)
	if result.Error != nil {
		if isUniqueConstraintViolation(result.Error) {
			// The child already hangs under another slot.
			return repository.ErrAlreadyPlaced
		}

		return errors.Wrap(result.Error, "failed to assign child slot")
	}

	if result.RowsAffected == 0 {
		return repo.missingOr(ctx, parentID, repository.ErrSlotTaken)
	}

	return nil
}

// SetParent records the placement on the child only while it has no parent.
func (repo *participantRepository) SetParent(ctx context.Context, placement *entity.Placement) error {
	result := repo.db.WithContext(ctx).
		Model(&model.ParticipantModel{}).
		Where("id = ? AND parent_id IS NULL", placement.ParticipantID).
		Updates(map[string]any{
			"parent_id":  placement.ParentID,
			"position":   string(placement.Slot),
			"sponsor_id": placement.SponsorID,
			"placed_at":  placement.PlacedAt,
		})
	if result.Error != nil {
		if isUniqueConstraintViolation(result.Error) {
			return repository.ErrSlotTaken
		}

		return errors.Wrap(result.Error, "failed to set participant parent")
	}

	if result.RowsAffected == 0 {
		return repo.missingOr(ctx, placement.ParticipantID, repository.ErrAlreadyPlaced)
	}

	return nil
}

// AddPoints increments the balance in place so concurrent credits never overwrite each other.
func (repo *participantRepository) AddPoints(ctx context.Context, id uuid.UUID, points int64) error {
	result := repo.db.WithContext(ctx).
		Model(&model.ParticipantModel{}).
		Where("id = ?", id).
		Update("total_points", gorm.Expr("total_points + ?", points))
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to add participant points")
	}

	if result.RowsAffected == 0 {
		return repository.ErrParticipantNotFound
	}

	return nil
}

// missingOr tells a vanished row apart from a lost conditional write.
func (repo *participantRepository) missingOr(ctx context.Context, id uuid.UUID, conflict error) error {
	found, err := repo.exists(ctx, "id = ?", id)
	if err != nil {
		return err
	}
	if !found {
		return repository.ErrParticipantNotFound
	}

	return conflict
}

func childColumn(slot entity.Slot) (string, error) {
	switch slot {
	case entity.SlotLeft:
		return "left_child_id", nil
	case entity.SlotRight:
		return "right_child_id", nil
	default:
		return "", errors.Errorf("unknown slot %q", slot)
	}
}

func toParticipantDomain(data *model.ParticipantModel) *entity.Participant {
	if data == nil {
		return nil
	}

	var position *entity.Slot
	if data.Position != nil {
		slot := entity.Slot(*data.Position)
		position = &slot
	}

	return &entity.Participant{
		ID:                data.ID,
		MemberID:          data.MemberID,
		ReferralCode:      data.ReferralCode,
		DisplayName:       data.DisplayName,
		SponsorID:         data.SponsorID,
		ParentID:          data.ParentID,
		Position:          position,
		LeftChildID:       data.LeftChildID,
		RightChildID:      data.RightChildID,
		TotalPoints:       data.TotalPoints,
		TotalEarnings:     data.TotalEarnings,
		PendingWithdrawal: data.PendingWithdrawal,
		WithdrawnAmount:   data.WithdrawnAmount,
		IsActive:          data.IsActive,
		PlacedAt:          data.PlacedAt,
		CreatedAt:         data.CreatedAt,
		UpdatedAt:         data.UpdatedAt,
	}
}

func fromParticipantDomain(data *entity.Participant) *model.ParticipantModel {
	if data == nil {
		return nil
	}

	var position *string
	if data.Position != nil {
		slot := string(*data.Position)
		position = &slot
	}

	var placedAt *time.Time
	if data.PlacedAt != nil {
		at := *data.PlacedAt
		placedAt = &at
	}

	return &model.ParticipantModel{
		ID:                data.ID,
		MemberID:          data.MemberID,
		ReferralCode:      data.ReferralCode,
		DisplayName:       data.DisplayName,
		SponsorID:         data.SponsorID,
		ParentID:          data.ParentID,
		Position:          position,
		LeftChildID:       data.LeftChildID,
		RightChildID:      data.RightChildID,
		TotalPoints:       data.TotalPoints,
		TotalEarnings:     data.TotalEarnings,
		PendingWithdrawal: data.PendingWithdrawal,
		WithdrawnAmount:   data.WithdrawnAmount,
		IsActive:          data.IsActive,
		PlacedAt:          placedAt,
		CreatedAt:         data.CreatedAt,
		UpdatedAt:         data.UpdatedAt,
	}
}
