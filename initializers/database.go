package initializers

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// ConnectToDB opens the MySQL connection described by AppConfig.DatabaseDSN.
func ConnectToDB() error {
	if AppConfig.DatabaseDSN == "" {
		return errors.New("database: DB_DSN is required")
	}

	db, err := gorm.Open(mysql.Open(AppConfig.DatabaseDSN), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("database: open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("database: pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	DB = db
	return nil
}
