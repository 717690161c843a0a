package repositories

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/current-see/solar_api/model"
)

type ProgressionRepository struct {
	BaseRepository
}

func NewProgressionRepository(db *gorm.DB) *ProgressionRepository {
	return &ProgressionRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

func (ds *ProgressionRepository) GetProgression(id string) (*model.Progression, error) {
	var progression model.Progression
	if err := ds.db.Where("id = ?", id).First(&progression).Error; err != nil {
		return nil, err
	}
	return &progression, nil
}

func (ds *ProgressionRepository) GetProgressionForSubject(subjectType, subjectID, contentType, contentID string) (*model.Progression, error) {
	var progression model.Progression
	err := ds.db.Where(
		"subject_type = ? AND subject_id = ? AND content_type = ? AND content_id = ?",
		subjectType, subjectID, contentType, contentID,
	).First(&progression).Error
	if err != nil {
		return nil, err
	}
	return &progression, nil
}

func (ds *ProgressionRepository) CreateProgression(progression *model.Progression) (*model.Progression, error) {
	if progression.ID == "" {
		id, _ := uuid.NewV7()
		progression.ID = id.String()
	}
	progression.CreatedAt = time.Now()
	progression.UpdatedAt = time.Now()

	if err := ds.db.Create(progression).Error; err != nil {
		return nil, err
	}
	return progression, nil
}

func (ds *ProgressionRepository) UpdateProgression(progression *model.Progression) error {
	progression.UpdatedAt = time.Now()
	if err := ds.db.Save(progression).Error; err != nil {
		return err
	}
	return nil
}

func (ds *ProgressionRepository) ListProgressionsForSubject(subjectType, subjectID string) ([]model.Progression, error) {
	var progressions []model.Progression
	if err := ds.db.Where("subject_type = ? AND subject_id = ?", subjectType, subjectID).
		Order("created_at ASC").Find(&progressions).Error; err != nil {
		return nil, err
	}
	return progressions, nil
}

func (ds *ProgressionRepository) GetEntitlement(accountID, contentType, contentID string) (*model.Entitlement, error) {
	var entitlement model.Entitlement
	err := ds.db.Where(
		"account_id = ? AND content_type = ? AND content_id = ?",
		accountID, contentType, contentID,
	).First(&entitlement).Error
	if err != nil {
		return nil, err
	}
	return &entitlement, nil
}

func (ds *ProgressionRepository) ListEntitlementsForAccount(accountID string) ([]model.Entitlement, error) {
	var entitlements []model.Entitlement
	if err := ds.db.Where("account_id = ?", accountID).
		Order("granted_at ASC").Find(&entitlements).Error; err != nil {
		return nil, err
	}
	return entitlements, nil
}
