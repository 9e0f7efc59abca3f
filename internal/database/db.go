package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"brigade/internal/config"
	"brigade/internal/models"
)

// Open connects to PostgreSQL and applies the configured pool settings
func Open(cfg *config.DBConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	zap.L().Info("database connected",
		zap.String("host", cfg.Host),
		zap.String("name", cfg.Name))

	return db, nil
}

// Migrate creates or updates the kitchen schema
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.ChefOrder{},
		&models.Ingredient{},
		&models.Recipe{},
		&models.MenuItem{},
		&models.InventoryTransaction{},
		&models.PurchaseOrder{},
	); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
