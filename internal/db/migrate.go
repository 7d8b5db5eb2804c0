package db

import (
	"errors" // Error inspection
	"time"   // Seed timestamps

	"inspection_system/internal/domain" // Importing domain models

	"github.com/shopspring/decimal" // Seed percentages
	"github.com/sirupsen/logrus"    // Structured logging
	"gorm.io/driver/mysql"          // MySQL driver for GORM
	"gorm.io/gorm"                  // GORM ORM library
)

// Models lists every table in migration order
var Models = []any{
	&domain.User{},
	&domain.Wallet{},
	&domain.Transaction{},
	&domain.VehicleInspection{},
	&domain.InspectionPhoto{},
	&domain.InspectionRevenueSettings{},
	&domain.InspectionRevenueSplit{},
	&domain.InspectionDocument{},
	&domain.DigitalSignature{},
	&domain.SignatureEvent{},
	&domain.WithdrawalRequest{},
}

// Open connects to MySQL with duplicate-key errors translated for the engine
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(mysql.Open(dsn), &gorm.Config{TranslateError: true})
}

// Migrate performs automatic migration for the database schema and seeds the
// default revenue settings when none exist
func Migrate(db *gorm.DB) error {
	// AutoMigrate will create tables, missing foreign keys, constraints, columns and indexes
	if err := db.AutoMigrate(Models...); err != nil {
		return err
	}
	if err := SeedRevenueSettings(db); err != nil {
		return err
	}
	logrus.Info("Migration completed.")
	return nil
}

// SeedRevenueSettings creates an active 60/40 dealer/platform split if the
// table is empty
func SeedRevenueSettings(db *gorm.DB) error {
	var existing domain.InspectionRevenueSettings
	err := db.First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	var marker uint8 = 1
	now := time.Now()
	seed := domain.InspectionRevenueSettings{
		DealerPercentage:   decimal.NewFromInt(60),
		PlatformPercentage: decimal.NewFromInt(40),
		IsActive:           true,
		ActiveMarker:       &marker,
		ActivatedAt:        &now,
	}
	if err := db.Create(&seed).Error; err != nil {
		return err
	}
	logrus.WithField("settings_id", seed.ID).Info("Default revenue settings seeded")
	return nil
}
