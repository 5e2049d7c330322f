package database

import (
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"zipfuzz/config"
)

// NewDBConnection connects to postgres when DATABASE_URL is configured.
// Crash record persistence is an optional sink; a nil *gorm.DB disables it.
func NewDBConnection(appConfig *config.AppConfig, logger *zap.Logger) *gorm.DB {
	if appConfig.DatabaseURL == "" {
		logger.Debug("DATABASE_URL not set, crash records stay on disk only")
		return nil
	}
	db, err := gorm.Open(postgres.Open(appConfig.DatabaseURL), &gorm.Config{})
	if err != nil {
		logger.Fatal("failed to connect database", zap.Error(err))
	}
	if err := db.AutoMigrate(&CrashRecord{}); err != nil {
		logger.Fatal("failed to migrate crash_records table", zap.Error(err))
	}
	logger.Debug("connected to database")
	return db
}
