package seeders

import (
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/current-see/solar_api/model"
)

// AdminSeeder handles seeding the default admin user
type AdminSeeder struct {
	db *gorm.DB
}

// NewAdminSeeder creates a new admin seeder
func NewAdminSeeder(db *gorm.DB) *AdminSeeder {
	return &AdminSeeder{db: db}
}

// SeedAdmin creates a default admin user if none exists
func (s *AdminSeeder) SeedAdmin() error {
	var existingAdmin model.User
	if err := s.db.Where("role = ?", "admin").First(&existingAdmin).Error; err == nil {
		log.Println("Admin user already exists, skipping admin seeding")
		return nil
	}

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin123"
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	id, _ := uuid.NewV7()

	admin := model.User{
		ID:        id.String(),
		Email:     "admin@currentsee.app",
		FirstName: "Admin",
		LastName:  "User",
		Password:  string(hashedPassword),
		Role:      "admin",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := s.db.Create(&admin).Error; err != nil {
		log.Printf("Error creating admin user: %v", err)
		return err
	}

	log.Printf("Created admin user: %s", admin.Email)
	return nil
}
