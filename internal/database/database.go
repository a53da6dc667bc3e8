package database

import (
	"fmt"
	"os"
	"time"

	"github.com/dtorrez/rentora-api/internal/models"
	pkgLogger "github.com/dtorrez/rentora-api/pkg/logger"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect establishes a connection to the PostgreSQL database
func Connect(databaseURL string) (*gorm.DB, error) {
	// Configure GORM logger
	logLevel := logger.Silent
	if os.Getenv("ENVIRONMENT") != "production" {
		logLevel = logger.Info
	}

	gormLogger := pkgLogger.NewGormLogger(
		logLevel,
		200*time.Millisecond,
	)

	// Open database connection
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true, // Improve performance
		PrepareStmt:            true, // Cache prepared statements
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying SQL database
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	// Verify connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Migrate creates or updates the database schema
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Organization{},
		&models.User{},
		&models.RefreshToken{},
		&models.Property{},
		&models.Unit{},
		&models.Lease{},
		&models.LeaseCharge{},
		&models.Invoice{},
		&models.InvoiceLine{},
		&models.Payment{},
		&models.PaymentConfirmationRequest{},
		&models.NumberSequence{},
		&models.Notification{},
		&models.AuditLog{},
		&models.AnalyticsCache{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	// AutoMigrate cannot express partial indexes. A lease may have at most one
	// draft invoice per billing period; races on concurrent generation must
	// fail at the database, not in application code.
	err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_invoices_one_draft_per_period
		ON invoices (lease_id, period_start, period_end)
		WHERE status = 'draft'`).Error
	if err != nil {
		return fmt.Errorf("failed to create draft invoice index: %w", err)
	}

	return nil
}
