package db

import (
	"labour_connect/internal/domain" // Importing domain models

	"github.com/sirupsen/logrus" // Structured logging
	"gorm.io/gorm"               // GORM ORM library
)

// Models lists every table owned by the core
func Models() []any {
	return []any{
		&domain.Wallet{},
		&domain.Transaction{},
		&domain.PaymentIntent{},
		&domain.Job{},
		&domain.Offer{},
		&domain.Rating{},
		&domain.Profile{},
		&domain.AuditLog{},
	}
}

// Migrate performs automatic migration for the database schema
func Migrate(db *gorm.DB) error {
	// AutoMigrate will create tables, missing foreign keys, constraints, columns and indexes
	if err := db.AutoMigrate(Models()...); err != nil {
		logrus.WithError(err).Error("migration failed") // Log migration failure
		return err
	}
	logrus.Info("Migration completed.") // Log successful migration
	return nil
}
