package main

import (
	"fmt"
	"log"

	"mops/internal/config"
	"mops/internal/db"
	"mops/internal/pkg/mops"
	"mops/internal/routes"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// The API degrades to cacheless fetching without a database.
	dbConn, err := db.InitDB(cfg.DatabaseURL)
	if err != nil {
		log.Printf("Warning: running without statement cache: %v", err)
		dbConn = nil
	} else if err := db.Migrate(dbConn); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	client := mops.New(cfg.MOPSBaseURL)
	client.SetRateLimit(cfg.RateLimit)

	router := routes.SetupRouter(dbConn, cfg, client)

	serverAddr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("Starting server on %s", serverAddr)
	if err := router.Run(serverAddr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
