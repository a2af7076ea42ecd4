package db

import (
	"fmt"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/shelfwise/catalog-backend/internal/logger"
	"github.com/shelfwise/catalog-backend/internal/models"
)

var DB *gorm.DB

// Connect initializes the database connection from DB_* environment variables.
func Connect() {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_SSLMODE"),
	)

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Error),
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", map[string]interface{}{
			"error": err.Error(),
		})
	}

	logger.Info("Database connected", nil)
}

// AutoMigrate runs database migrations for the error-tracking schema.
func AutoMigrate() {
	if err := DB.AutoMigrate(&models.ErrorLog{}); err != nil {
		logger.Fatal("ErrorLog migration failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	logger.Info("Database migrations completed", nil)
}

// GetDB returns the database instance.
func GetDB() *gorm.DB {
	return DB
}
