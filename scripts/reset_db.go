package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/floatify/custodian/internal/logger"
	"github.com/floatify/custodian/internal/state"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// Initialize logger
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logger.Initialize(logLevel)
	log.Info().Msg("Starting database reset script...")

	// Load environment variables from .env file
	err := godotenv.Load()
	if err != nil {
		log.Warn().Msg("Warning: .env file not found or error loading .env file. Relying on OS environment variables.")
	}

	// Get database configuration from environment variables
	dbHost := os.Getenv("DB_HOST")
	dbPortStr := os.Getenv("DB_PORT")
	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")
	dbSSLMode := os.Getenv("DB_SSLMODE")

	// Set defaults for missing values
	if dbHost == "" {
		dbHost = "localhost"
	}
	if dbPortStr == "" {
		dbPortStr = "5432"
	}
	if dbSSLMode == "" {
		dbSSLMode = "disable"
	}

	dbPort, err := strconv.Atoi(dbPortStr)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid DB_PORT value")
	}

	cfg := state.DBConfig{
		Host: dbHost, Port: dbPort,
		User: dbUser, Password: dbPassword,
		DBName: dbName, SSLMode: dbSSLMode,
	}
	if err := state.InitDB(cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer state.CloseDB()

	fmt.Println("This will DROP vault_events and vault_totals. Type 'yes' to continue:")
	var confirm string
	fmt.Scanln(&confirm)
	if confirm != "yes" {
		log.Info().Msg("Aborted.")
		return
	}

	dropSQL := `
		DROP TABLE IF EXISTS vault_events CASCADE;
		DROP TABLE IF EXISTS vault_totals CASCADE;
	`
	if _, err := state.DB.Exec(dropSQL); err != nil {
		log.Fatal().Err(err).Msg("Failed to drop tables")
	}

	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to recreate schema")
	}

	log.Info().Msg("Database reset complete.")
}
