package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/onetarget777/kachra-site/internal/models"
)

// DB is the global database handle, set by Initialize.
var DB *gorm.DB

// Initialize opens the sqlite database and runs migrations.
func Initialize(dbPath string) error {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	// sqlite handles one writer at a time; keep the pool small.
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)

	if err := Migrate(db); err != nil {
		return err
	}

	DB = db
	return nil
}

// Migrate runs schema migrations on the given handle. Exposed so tests
// can migrate their own in-memory databases.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Account{},
		&models.Content{},
		&models.ShareLink{},
		&models.SiteSettings{},
		&models.ActivityLog{},
		&models.Like{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
