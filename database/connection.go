package database

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Ananth-NQI/cassany-backend/internal/config"
)

const socketDir = "/cloudsql"

// DSN builds the connection string. DATABASE_URL wins over the individual settings;
// INSTANCE_CONNECTION_NAME selects the Cloud SQL unix socket.
func DSN(cfg *config.Config) string {
	if cfg.DatabaseURL != "" {
		return cfg.DatabaseURL
	}
	if cfg.InstanceConnectionName != "" {
		return fmt.Sprintf("host=%s/%s user=%s password=%s dbname=%s sslmode=disable",
			socketDir, cfg.InstanceConnectionName, cfg.DBUser, cfg.DBPass, cfg.DBName)
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		cfg.DBHost, cfg.DBUser, cfg.DBPass, cfg.DBName, cfg.DBPort)
}

// IsSQLite reports whether dsn points at a sqlite database.
func IsSQLite(dsn string) bool {
	return strings.HasPrefix(dsn, "sqlite://") || strings.HasPrefix(dsn, "file:")
}

// Connect opens the session database. Unique violations are translated to
// gorm.ErrDuplicatedKey, which the session store relies on.
func Connect(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	dsn := DSN(cfg)
	gormCfg := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	}
	if cfg.IsDevelopment() {
		gormCfg.Logger = logger.Default.LogMode(logger.Warn)
	}

	var dialector gorm.Dialector
	if IsSQLite(dsn) {
		dialector = sqlite.Open(strings.TrimPrefix(dsn, "sqlite://"))
		log.Info("Connecting to SQLite", zap.String("dsn", dsn))
	} else {
		dialector = postgres.Open(dsn)
		if cfg.InstanceConnectionName != "" {
			log.Info("Connecting to Cloud SQL via socket", zap.String("instance", cfg.InstanceConnectionName))
		} else {
			log.Info("Connecting to PostgreSQL", zap.String("host", cfg.DBHost))
		}
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if IsSQLite(dsn) {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql db: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	log.Info("Database connected")
	return db, nil
}
