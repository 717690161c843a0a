package seeders

import (
	"log"

	"gorm.io/gorm"
)

// MainSeeder coordinates all seeding operations
type MainSeeder struct {
	db *gorm.DB
}

// NewMainSeeder creates a new main seeder
func NewMainSeeder(db *gorm.DB) *MainSeeder {
	return &MainSeeder{db: db}
}

// SeedAll runs all seeders in the correct order
func (s *MainSeeder) SeedAll() error {
	log.Println("Starting database seeding...")

	contentSeeder := NewContentSeeder(s.db)
	if err := contentSeeder.SeedContent(); err != nil {
		log.Printf("Content seeding failed: %v", err)
		return err
	}

	adminSeeder := NewAdminSeeder(s.db)
	if err := adminSeeder.SeedAdmin(); err != nil {
		log.Printf("Admin seeding failed: %v", err)
		return err
	}

	log.Println("Database seeding completed successfully!")
	return nil
}

// SeedContentOnly seeds only the content catalog
func (s *MainSeeder) SeedContentOnly() error {
	contentSeeder := NewContentSeeder(s.db)
	return contentSeeder.SeedContent()
}

// SeedAdminOnly seeds only the admin user
func (s *MainSeeder) SeedAdminOnly() error {
	adminSeeder := NewAdminSeeder(s.db)
	return adminSeeder.SeedAdmin()
}
