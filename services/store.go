package services

import (
	"os"

	"github.com/alphabatem/common/context"
	"gorm.io/gorm"
)

// SqlStore is implemented by SqliteService and PostgresService so the domain
// services stay driver agnostic.
type SqlStore interface {
	Db() *gorm.DB
}

// StoreID returns the service id of the database driver selected by
// DB_DRIVER. SQLite is the default for local development.
func StoreID() string {
	if os.Getenv("DB_DRIVER") == "postgres" {
		return POSTGRES_SVC
	}
	return SQLITE_SVC
}

// NewStoreService returns the database service selected by DB_DRIVER.
func NewStoreService() context.Service {
	if os.Getenv("DB_DRIVER") == "postgres" {
		return &PostgresService{}
	}
	return &SqliteService{}
}
