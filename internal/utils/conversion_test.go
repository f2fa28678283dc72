package utils

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

func TestIntToFloat64(t *testing.T) {
	out, err := IntToFloat64(sdkmath.NewIntWithDecimal(100, 18), 18)
	require.NoError(t, err)
	require.InDelta(t, 100.0, out, 1e-9)

	out, err = IntToFloat64(sdkmath.NewInt(1500000), 6)
	require.NoError(t, err)
	require.InDelta(t, 1.5, out, 1e-9)

	out, err = IntToFloat64(sdkmath.ZeroInt(), 18)
	require.NoError(t, err)
	require.Equal(t, 0.0, out)
}

func TestIntToFloat64Validation(t *testing.T) {
	_, err := IntToFloat64(sdkmath.NewInt(1), -1)
	require.ErrorIs(t, err, ErrInvalidPrecision)

	_, err = IntToFloat64(sdkmath.NewInt(1), 19)
	require.ErrorIs(t, err, ErrInvalidPrecision)

	_, err = IntToFloat64(sdkmath.Int{}, 18)
	require.ErrorIs(t, err, ErrAmountNil)

	_, err = IntToFloat64(sdkmath.NewInt(-1), 18)
	require.ErrorIs(t, err, ErrAmountNegative)
}

func TestParseAmount(t *testing.T) {
	out, err := ParseAmount("100", 18)
	require.NoError(t, err)
	require.True(t, out.Equal(sdkmath.NewIntWithDecimal(100, 18)))

	out, err = ParseAmount("1.5", 6)
	require.NoError(t, err)
	require.True(t, out.Equal(sdkmath.NewInt(1500000)))

	out, err = ParseAmount("0", 18)
	require.NoError(t, err)
	require.True(t, out.IsZero())
}

func TestParseAmountValidation(t *testing.T) {
	_, err := ParseAmount("abc", 18)
	require.ErrorIs(t, err, ErrConversionFailed)

	_, err = ParseAmount("-3", 18)
	require.ErrorIs(t, err, ErrAmountNegative)

	// 0.0000001 cannot be represented at 6 decimals without truncation.
	_, err = ParseAmount("0.0000001", 6)
	require.ErrorIs(t, err, ErrConversionFailed)

	_, err = ParseAmount("1", 42)
	require.ErrorIs(t, err, ErrInvalidPrecision)
}
