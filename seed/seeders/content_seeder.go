package seeders

import (
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/current-see/solar_api/model"
)

// ContentSeeder handles seeding the gated content catalog
type ContentSeeder struct {
	db *gorm.DB
}

// NewContentSeeder creates a new content seeder
func NewContentSeeder(db *gorm.DB) *ContentSeeder {
	return &ContentSeeder{db: db}
}

// SeedContent inserts the default catalog. Existing rows are left untouched.
func (s *ContentSeeder) SeedContent() error {
	contents := []model.GatedContent{
		{
			ContentType:   "article",
			ContentID:     "intro-to-solar",
			Title:         "Introduction to Solar",
			Description:   "What Solar is and how the daily distribution works.",
			SolarCost:     50,
			TimerDuration: 300,
		},
		{
			ContentType:   "article",
			ContentID:     "ledger-deep-dive",
			Title:         "Ledger Deep Dive",
			Description:   "How every balance change maps to a ledger entry.",
			SolarCost:     50,
			TimerDuration: 300,
		},
		{
			ContentType:   "video",
			ContentID:     "getting-started",
			Title:         "Getting Started",
			Description:   "A short walkthrough of timers, unlocks and entitlements.",
			SolarCost:     25,
			TimerDuration: 180,
		},
		{
			ContentType:   "video",
			ContentID:     "advanced-walkthrough",
			Title:         "Advanced Walkthrough",
			Description:   "Longer-form content behind a longer gate.",
			SolarCost:     100,
			TimerDuration: 600,
		},
	}

	seeded := 0
	for i := range contents {
		content := contents[i]

		var existing model.GatedContent
		err := s.db.Where("content_type = ? AND content_id = ?", content.ContentType, content.ContentID).
			First(&existing).Error
		if err == nil {
			continue
		}

		content.IsActive = true
		content.CreatedAt = time.Now()
		content.UpdatedAt = time.Now()

		if err := s.db.Create(&content).Error; err != nil {
			log.Printf("Error creating content %s/%s: %v", content.ContentType, content.ContentID, err)
			return err
		}
		seeded++
	}

	log.Printf("Content seeding complete: %d new rows", seeded)
	return nil
}
