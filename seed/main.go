// seed/main.go
package main

import (
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/current-see/solar_api/model"
	"github.com/current-see/solar_api/seed/seeders"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	var (
		seedType = flag.String("type", "all", "Type of seeding: all, content, admin")
		dbPath   = flag.String("db", "", "Database path (overrides DB_DATABASE env var)")
		help     = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *help {
		showHelp()
		return
	}

	databasePath := *dbPath
	if databasePath == "" {
		databasePath = os.Getenv("DB_DATABASE")
		if databasePath == "" {
			databasePath = "solar_api.db"
		}
	}

	db, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Printf("Connected to database: %s", databasePath)

	if err := db.AutoMigrate(&model.User{}, &model.GatedContent{}); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	mainSeeder := seeders.NewMainSeeder(db)

	switch *seedType {
	case "all":
		log.Println("Running complete database seeding...")
		if err := mainSeeder.SeedAll(); err != nil {
			log.Fatalf("Failed to seed database: %v", err)
		}
	case "content":
		log.Println("Seeding content catalog only...")
		if err := mainSeeder.SeedContentOnly(); err != nil {
			log.Fatalf("Failed to seed content: %v", err)
		}
	case "admin":
		log.Println("Seeding admin user only...")
		if err := mainSeeder.SeedAdminOnly(); err != nil {
			log.Fatalf("Failed to seed admin: %v", err)
		}
	default:
		log.Fatalf("Unknown seed type: %s. Use 'all', 'content' or 'admin'", *seedType)
	}

	log.Println("Seeding operation completed successfully!")
}

func showHelp() {
	log.Println(`
Database Seeding Tool for the Solar API

Usage: go run seed/main.go [flags]

Flags:
  -type string
        Type of seeding to perform (default "all")
        Options: all, content, admin
  -db string
        Database path (overrides DB_DATABASE environment variable)
  -help
        Show this help message

Examples:
  # Seed everything
  go run seed/main.go

  # Seed only the content catalog
  go run seed/main.go -type=content

  # Seed with custom database path
  go run seed/main.go -db=./custom.db

Environment Variables:
  DB_DATABASE - Default database path (default: solar_api.db)
  ADMIN_PASSWORD - Password for the seeded admin user
`)
}
