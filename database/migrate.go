package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Ananth-NQI/cassany-backend/internal/models"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate brings the schema to the latest version. PostgreSQL runs the embedded
// versioned migrations; SQLite, used only for local development, is auto-migrated
// from the models.
func Migrate(db *gorm.DB, log *zap.Logger) error {
	if db.Dialector.Name() == "sqlite" {
		if err := db.AutoMigrate(&models.Session{}, &models.ProcessedMessage{}); err != nil {
			return fmt.Errorf("failed to auto-migrate sqlite: %w", err)
		}
		log.Info("SQLite schema migrated")
		return nil
	}

	m, err := newMigrator(db)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	log.Info("Migrations applied", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// Rollback reverts the most recent migration step.
func Rollback(db *gorm.DB, log *zap.Logger) error {
	if db.Dialector.Name() == "sqlite" {
		return fmt.Errorf("rollback is not supported for sqlite")
	}
	m, err := newMigrator(db)
	if err != nil {
		return err
	}
	if err := m.Steps(-1); err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}
	log.Info("Rolled back one migration")
	return nil
}

// newMigrator does not close the returned instance: closing would close the
// shared *sql.DB that gorm keeps using.
func newMigrator(db *gorm.DB) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}
	driver, err := migratepg.WithInstance(sqlDB, &migratepg.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}
