/*
This file contains common utility functions for converting between on-ledger
integer amounts and human-readable decimal values, with precision handling.
*/

package utils

import (
	"errors"
	"fmt"
	"math"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
)

// IntToFloat64 converts an on-ledger integer amount to float64 with proper
// precision handling. Display use only; never feed the result back into an
// operation.
func IntToFloat64(amount sdkmath.Int, precision int) (float64, error) {
	if precision < 0 || precision > 18 {
		return 0, fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if amount.IsNil() {
		return 0, ErrAmountNil
	}
	if amount.IsNegative() {
		return 0, ErrAmountNegative
	}

	decAmount := sdkmath.LegacyNewDecFromInt(amount)
	factor := sdkmath.LegacyNewDec(1)
	for i := 0; i < precision; i++ {
		factor = factor.Mul(sdkmath.LegacyNewDec(10))
	}

	result := decAmount.Quo(factor)
	resultFloat, err := result.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}

	if math.IsNaN(resultFloat) || math.IsInf(resultFloat, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, resultFloat)
	}

	return resultFloat, nil
}

// ParseAmount converts a human-entered decimal string to an on-ledger
// integer amount at the given precision. Fractional digits beyond the
// precision are rejected rather than silently truncated.
func ParseAmount(value string, precision int) (sdkmath.Int, error) {
	if precision < 0 || precision > 18 {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}

	decAmount, err := sdkmath.LegacyNewDecFromStr(value)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: failed to parse decimal %q: %w", ErrConversionFailed, value, err)
	}
	if decAmount.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}

	factor := sdkmath.LegacyNewDec(1)
	for i := 0; i < precision; i++ {
		factor = factor.Mul(sdkmath.LegacyNewDec(10))
	}

	scaled := decAmount.Mul(factor)
	if !scaled.Sub(scaled.TruncateDec()).IsZero() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %q has more than %d fractional digits", ErrConversionFailed, value, precision)
	}

	return scaled.TruncateInt(), nil
}
