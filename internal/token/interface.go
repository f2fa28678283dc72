package token

import (
	"errors"

	sdkmath "cosmossdk.io/math"

	"github.com/floatify/custodian/internal/types"
)

// Contract-level errors shared by every implementation of the interfaces
// below. The custodian matches on these with errors.Is and never re-derives
// the conditions locally; the token ledger is the authority.
var (
	ErrInsufficientBalance    = errors.New("insufficient token balance")
	ErrInsufficientAllowance  = errors.New("insufficient token allowance")
	ErrInsufficientRedeemable = errors.New("requested amount exceeds redeemable holdings")
	ErrMarketPaused           = errors.New("money market is paused")
	ErrInvalidAmount          = errors.New("token amount is invalid")
)

// Stablecoin is the narrow view of the deposited asset (a DAI-equivalent
// ERC20 ledger) that the custodian depends on. Balances are always read live
// from here; the custodian never caches them.
type Stablecoin interface {
	// BalanceOf returns the live balance of addr.
	BalanceOf(addr types.Address) sdkmath.Int

	// Transfer moves amount from one account to another. Fails with
	// ErrInsufficientBalance when from cannot cover amount.
	Transfer(from, to types.Address, amount sdkmath.Int) error

	// Approve grants spender an allowance over owner's balance, replacing
	// any previous allowance.
	Approve(owner, spender types.Address, amount sdkmath.Int) error

	// Allowance returns the remaining allowance spender holds over owner.
	Allowance(owner, spender types.Address) sdkmath.Int
}

// YieldMarket is the narrow view of the external money market (a
// Compound-cToken-equivalent). The market's internal mechanics are opaque;
// the custodian relies only on the behavior documented here.
type YieldMarket interface {
	// Mint pulls amount of stablecoin from the supplier through the
	// previously granted allowance and credits the supplier with yield
	// tokens at the current exchange rate.
	Mint(supplier types.Address, amount sdkmath.Int) error

	// Redeem burns tokens of the supplier's yield-token balance and
	// returns the corresponding stablecoin at the current exchange rate.
	Redeem(supplier types.Address, tokens sdkmath.Int) error

	// RedeemUnderlying burns however many yield tokens are needed to
	// return exactly amount of stablecoin. Fails with
	// ErrInsufficientRedeemable when the supplier's holdings cannot
	// produce amount at the current exchange rate.
	RedeemUnderlying(supplier types.Address, amount sdkmath.Int) error

	// BalanceOf returns the supplier's live yield-token balance.
	BalanceOf(addr types.Address) sdkmath.Int

	// ExchangeRateCurrent returns the stablecoin-per-yield-token rate.
	// Monotonically non-decreasing over time, by protocol contract.
	ExchangeRateCurrent() sdkmath.LegacyDec
}
