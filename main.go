package main

import (
	"log"
	"net/http"
	"time"

	"outreach-tracker/config"
	"outreach-tracker/database"
	"outreach-tracker/handlers"
	"outreach-tracker/services"
)

func main() {
	// Load configuration from .env
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	var store database.Store
	if cfg.DatabaseURL != "" {
		if err := database.ApplyMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			log.Fatalf("Error applying database migrations: %v", err)
		}
		pg, err := database.NewPostgresStore(cfg.DatabaseURL, cfg.StoreTimeout)
		if err != nil {
			log.Fatalf("Error connecting to database: %v", err)
		}
		defer pg.Close()
		store = pg
		log.Println("Using PostgreSQL send log.")
	} else {
		csvStore, err := database.NewCSVStore(cfg.LogFile, cfg.StoreTimeout)
		if err != nil {
			log.Fatalf("Error opening send log: %v", err)
		}
		store = csvStore
		log.Printf("Using CSV send log at %s", csvStore.Path())
	}

	r := handlers.NewRouter(
		services.NewTrackingService(store),
		services.NewStatsService(store),
		services.NewComposeService(store, cfg.PublicBaseURL),
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("Starting email tracking server on port %s...", cfg.Port)
	log.Println("Endpoints:")
	log.Println("  /track       - Track email opens")
	log.Println("  /reply       - Track email replies")
	log.Println("  /status      - Get tracking statistics")
	log.Println("  /api/records - Log a send (POST) or list the send log (GET)")
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
