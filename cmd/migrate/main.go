package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/shelfwise/catalog-backend/internal/db"
	"github.com/shelfwise/catalog-backend/internal/logger"
)

func main() {
	logger.Initialize()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	db.Connect()

	log.Println("Running database migrations...")
	db.AutoMigrate()
	log.Println("Database migrations completed successfully")
}
