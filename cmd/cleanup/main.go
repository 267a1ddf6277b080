package main

import (
	"log"

	"github.com/test-portal/backend/internal/config"
	"github.com/test-portal/backend/internal/database"
	"github.com/test-portal/backend/internal/services"
)

// cleanup purges questions left without a test schedule, with their options.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	questions, options, err := services.PurgeOrphanQuestions(db)
	if err != nil {
		log.Fatal("Cleanup failed:", err)
	}

	log.Printf("Database cleanup completed - removed %d orphaned questions and %d options", questions, options)
}
