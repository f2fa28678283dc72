package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// VaultAddress is the custodian's own account in the token ledgers.
	VaultAddress string
	// ControllerAddress is the identity the custodian is deployed under and
	// the identity the operator surface acts as.
	ControllerAddress string
	// MarketAddress is the money market's account, i.e. the spender granted
	// the unlimited stablecoin allowance.
	MarketAddress string

	// StablecoinSymbol is the deposited asset's symbol, e.g. "DAI".
	StablecoinSymbol string
	// StablecoinDecimals is the deposited asset's decimal precision.
	StablecoinDecimals uint64

	// InitialExchangeRate is the sim market's starting stablecoin-per-yield-token
	// rate, as a decimal string (cDAI launched near 0.02).
	InitialExchangeRate string
	// YieldPerBlock is the sim market's multiplicative per-block rate growth,
	// as a decimal string >= 1.
	YieldPerBlock string
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	VaultAddress, err = getEnv("CUSTODIAN_VAULT_ADDRESS")
	if err != nil {
		return err
	}

	ControllerAddress, err = getEnv("CUSTODIAN_CONTROLLER_ADDRESS")
	if err != nil {
		return err
	}

	MarketAddress, err = getEnv("CUSTODIAN_MARKET_ADDRESS")
	if err != nil {
		return err
	}

	StablecoinSymbol, err = getEnv("STABLECOIN_SYMBOL")
	if err != nil {
		return err
	}

	StablecoinDecimals, err = getEnvAsUint64("STABLECOIN_DECIMALS")
	if err != nil {
		return err
	}

	InitialExchangeRate, err = getEnv("MARKET_INITIAL_EXCHANGE_RATE")
	if err != nil {
		return err
	}

	YieldPerBlock, err = getEnv("MARKET_YIELD_PER_BLOCK")
	if err != nil {
		return err
	}

	log.Debug().
		Str("VaultAddress", VaultAddress).
		Str("ControllerAddress", ControllerAddress).
		Str("StablecoinSymbol", StablecoinSymbol).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}
