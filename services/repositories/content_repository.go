package repositories

import (
	"time"

	"gorm.io/gorm"

	"github.com/current-see/solar_api/model"
)

type ContentRepository struct {
	BaseRepository
}

func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

func (ds *ContentRepository) GetContent(contentType, contentID string) (*model.GatedContent, error) {
	var content model.GatedContent
	err := ds.db.Where("content_type = ? AND content_id = ? AND is_active = ?",
		contentType, contentID, true).First(&content).Error
	if err != nil {
		return nil, err
	}
	return &content, nil
}

func (ds *ContentRepository) CreateContent(content *model.GatedContent) (*model.GatedContent, error) {
	content.CreatedAt = time.Now()
	content.UpdatedAt = time.Now()

	if err := ds.db.Create(content).Error; err != nil {
		return nil, err
	}
	return content, nil
}

func (ds *ContentRepository) UpdateContent(content *model.GatedContent) error {
	content.UpdatedAt = time.Now()
	return ds.db.Save(content).Error
}

func (ds *ContentRepository) ListContent() ([]model.GatedContent, error) {
	var contents []model.GatedContent
	if err := ds.db.Where("is_active = ?", true).
		Order("content_type ASC, content_id ASC").Find(&contents).Error; err != nil {
		return nil, err
	}
	return contents, nil
}
