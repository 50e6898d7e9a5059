package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultLogFile        = "sent_log.csv"
	defaultPort           = "5000"
	defaultStoreTimeout   = 5 * time.Second
	defaultMigrationsPath = "database/migrations"
)

// Config holds all application configurations
type Config struct {
	LogFile        string
	DatabaseURL    string
	Port           string
	StoreTimeout   time.Duration
	PublicBaseURL  string
	MigrationsPath string
}

// LoadConfig reads configuration from .env file
func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found, using environment variables directly.")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	storeTimeout := defaultStoreTimeout
	timeoutStr := os.Getenv("STORE_TIMEOUT_MS")
	if timeoutStr != "" {
		ms, err := strconv.Atoi(timeoutStr)
		if err != nil || ms <= 0 {
			log.Printf("STORE_TIMEOUT_MS invalid, defaulting to %s", defaultStoreTimeout)
		} else {
			storeTimeout = time.Duration(ms) * time.Millisecond
		}
	}

	baseURL := os.Getenv("PUBLIC_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:" + port
	}

	return &Config{
		LogFile:        envOr("LOG_FILE", defaultLogFile),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		Port:           port,
		StoreTimeout:   storeTimeout,
		PublicBaseURL:  baseURL,
		MigrationsPath: envOr("MIGRATIONS_PATH", defaultMigrationsPath),
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
