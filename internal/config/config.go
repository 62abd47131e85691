package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Environment
	Env string

	// Database
	DBPath string

	// Ledger
	BaseCurrency string

	// Transfer reconciliation. Window is the maximum number of days
	// between the posted dates of two legs of a transfer; tolerance is
	// the maximum absolute difference between the leg amounts, in cents.
	TransferWindowDays     int
	TransferToleranceCents int64

	// Mortgage reconciliation tolerance, in cents, applied per component
	// (principal, interest, escrow) when comparing the derived schedule
	// against lender-reported payments.
	MortgageToleranceCents int64
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Env:          getEnv("ENV", "development"),
		DBPath:       getEnv("PF_DB_PATH", "data/pfledger.sqlite"),
		BaseCurrency: getEnv("PF_BASE_CURRENCY", "USD"),

		TransferWindowDays:     getEnvInt("PF_TRANSFER_WINDOW_DAYS", 3),
		TransferToleranceCents: getEnvInt64("PF_TRANSFER_TOLERANCE_CENTS", 0),
		MortgageToleranceCents: getEnvInt64("PF_MORTGAGE_TOLERANCE_CENTS", 100),
	}

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %d\n", key, raw, defaultValue)
		return defaultValue
	}
	return v
}

func getEnvInt64(key string, defaultValue int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %d\n", key, raw, defaultValue)
		return defaultValue
	}
	return v
}
