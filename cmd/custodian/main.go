package main

import (
	"os"
	"strconv"

	sdkmath "cosmossdk.io/math"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/floatify/custodian/internal/config"
	"github.com/floatify/custodian/internal/logger"
	"github.com/floatify/custodian/internal/market"
	"github.com/floatify/custodian/internal/state"
	"github.com/floatify/custodian/internal/types"
	"github.com/floatify/custodian/internal/vault"
	"github.com/floatify/custodian/internal/web"
)

// main is the entry point for the custodian service.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Custodian Vault Starting...")

	// Initialize Database Connection (event receipt mirror)
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// --- 2. Collaborator Construction (with Safety Switch) ---
	// The custodian only runs against the simulated market for now. Anything
	// else halts rather than guessing at a live token binding.
	mode := os.Getenv("CUSTODIAN_MODE")
	if mode != "sim" {
		log.Fatal().Msg("CUSTODIAN_MODE is not set to 'sim'. Halting to prevent accidental execution. Set CUSTODIAN_MODE=sim to run.")
	}

	stablecoin := market.NewERC20(config.StablecoinSymbol)

	initialRate, err := sdkmath.LegacyNewDecFromStr(config.InitialExchangeRate)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid MARKET_INITIAL_EXCHANGE_RATE")
	}
	yieldPerBlock, err := sdkmath.LegacyNewDecFromStr(config.YieldPerBlock)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid MARKET_YIELD_PER_BLOCK")
	}

	mm, err := market.NewMoneyMarket(types.Address(config.MarketAddress), stablecoin, initialRate, yieldPerBlock)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize money market")
	}

	// --- 3. Custodian Construction ---
	custodian, err := vault.New(
		types.Address(config.VaultAddress),
		types.Address(config.ControllerAddress),
		stablecoin,
		mm,
		mm.Address(),
		vault.LogRecorder{},
		state.Mirror{},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize custodian")
	}

	// --- 4. Operator Surface ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}

	webServer := web.NewWebServer(webPort, custodian, stablecoin, mm,
		types.Address(config.ControllerAddress), int(config.StablecoinDecimals))

	log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting custodian dashboard")
	if err := webServer.Start(); err != nil {
		log.Fatal().Err(err).Msg("Web server failed")
	}
}

// mustAtoi parses s, falling back to def when unset or invalid.
func mustAtoi(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
