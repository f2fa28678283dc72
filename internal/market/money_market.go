/*

This file contains the simulated money market: a Compound-style cToken over
the in-memory stablecoin ledger. It is the injected YieldMarket collaborator
in sim mode and in tests. The exchange rate grows per simulated block, so
yield accrues against suppliers exactly the way the live market's
exchangeRateCurrent does between transactions.

*/

package market

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/floatify/custodian/internal/logger"
	"github.com/floatify/custodian/internal/token"
	"github.com/floatify/custodian/internal/types"
)

var marketLogger = logger.GetForComponent("money_market")

var (
	_ token.Stablecoin  = (*ERC20)(nil)
	_ token.YieldMarket = (*MoneyMarket)(nil)
)

var (
	ErrInvalidUnderlying = errors.New("underlying ledger is invalid")
	ErrInvalidRate       = errors.New("exchange rate configuration is invalid")
)

// MoneyMarket implements token.YieldMarket against an ERC20 underlying.
type MoneyMarket struct {
	mu sync.Mutex

	// address is the market's own account in the underlying ledger, where
	// pulled stablecoin sits while deposited.
	address    types.Address
	underlying *ERC20

	balances map[types.Address]sdkmath.Int // yield-token holdings

	rate          sdkmath.LegacyDec // stablecoin per yield token
	yieldPerBlock sdkmath.LegacyDec // multiplicative per-block growth, >= 1
	block         uint64

	paused bool
}

// NewMoneyMarket creates a market over the given underlying ledger. The
// initial rate and per-block yield factor must be positive, and the yield
// factor must be at least one so the rate stays monotone.
func NewMoneyMarket(address types.Address, underlying *ERC20, initialRate, yieldPerBlock sdkmath.LegacyDec) (*MoneyMarket, error) {
	if underlying == nil {
		return nil, ErrInvalidUnderlying
	}
	if address.IsZero() {
		return nil, errors.Join(ErrInvalidUnderlying, errors.New("market address cannot be zero"))
	}
	if initialRate.IsNil() || !initialRate.IsPositive() {
		return nil, errors.Join(ErrInvalidRate, fmt.Errorf("initial rate must be positive, got %v", initialRate))
	}
	if yieldPerBlock.IsNil() || yieldPerBlock.LT(sdkmath.LegacyOneDec()) {
		return nil, errors.Join(ErrInvalidRate, fmt.Errorf("yield per block must be >= 1, got %v", yieldPerBlock))
	}

	marketLogger.Info().
		Str("address", string(address)).
		Str("underlying", underlying.Symbol()).
		Str("initialRate", initialRate.String()).
		Str("yieldPerBlock", yieldPerBlock.String()).
		Msg("Simulated money market initialized")

	return &MoneyMarket{
		address:       address,
		underlying:    underlying,
		balances:      make(map[types.Address]sdkmath.Int),
		rate:          initialRate,
		yieldPerBlock: yieldPerBlock,
	}, nil
}

// Address returns the market's account in the underlying ledger. The
// custodian grants its allowance to this identity.
func (m *MoneyMarket) Address() types.Address {
	return m.address
}

// Mint pulls amount of stablecoin from the supplier via allowance and
// credits yield tokens at the current exchange rate.
func (m *MoneyMarket) Mint(supplier types.Address, amount sdkmath.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.paused {
		return token.ErrMarketPaused
	}
	if amount.IsZero() {
		// Zero-amount mint is a documented no-op on the real market.
		return nil
	}

	if err := m.underlying.TransferFrom(m.address, supplier, m.address, amount); err != nil {
		return err
	}

	tokens := sdkmath.LegacyNewDecFromInt(amount).Quo(m.rate).TruncateInt()
	m.balances[supplier] = m.balanceOf(supplier).Add(tokens)

	marketLogger.Debug().
		Str("supplier", string(supplier)).
		Str("underlyingIn", amount.String()).
		Str("tokensMinted", tokens.String()).
		Str("rate", m.rate.String()).
		Msg("Mint")
	return nil
}

// Redeem burns tokens and returns the corresponding stablecoin at the
// current exchange rate.
func (m *MoneyMarket) Redeem(supplier types.Address, tokens sdkmath.Int) error {
	if err := validateAmount(tokens); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.paused {
		return token.ErrMarketPaused
	}
	if tokens.IsZero() {
		return nil
	}

	held := m.balanceOf(supplier)
	if held.LT(tokens) {
		return errors.Join(token.ErrInsufficientRedeemable,
			fmt.Errorf("supplier %s holds %s tokens, redeeming %s", supplier, held, tokens))
	}

	out := sdkmath.LegacyNewDecFromInt(tokens).Mul(m.rate).TruncateInt()
	return m.payOut(supplier, tokens, out)
}

// RedeemUnderlying burns however many tokens are needed to return exactly
// amount of stablecoin.
func (m *MoneyMarket) RedeemUnderlying(supplier types.Address, amount sdkmath.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.paused {
		return token.ErrMarketPaused
	}
	if amount.IsZero() {
		return nil
	}

	// Burned tokens round up so the market never pays out more underlying
	// than the burned claim is worth.
	burned := sdkmath.LegacyNewDecFromInt(amount).Quo(m.rate).Ceil().TruncateInt()
	held := m.balanceOf(supplier)
	if held.LT(burned) {
		return errors.Join(token.ErrInsufficientRedeemable,
			fmt.Errorf("supplier %s holds %s tokens, needs %s to redeem %s underlying", supplier, held, burned, amount))
	}

	return m.payOut(supplier, burned, amount)
}

// payOut burns tokens and transfers out underlying, accruing interest cash
// into the market account first when the claim exceeds pulled principal.
func (m *MoneyMarket) payOut(supplier types.Address, tokens, out sdkmath.Int) error {
	if cash := m.underlying.BalanceOf(m.address); cash.LT(out) {
		// The live market funds accrued interest from borrowers; the sim
		// issues the shortfall directly.
		if err := m.underlying.Issue(m.address, out.Sub(cash)); err != nil {
			return err
		}
	}

	if err := m.underlying.Transfer(m.address, supplier, out); err != nil {
		return err
	}
	m.balances[supplier] = m.balanceOf(supplier).Sub(tokens)

	marketLogger.Debug().
		Str("supplier", string(supplier)).
		Str("tokensBurned", tokens.String()).
		Str("underlyingOut", out.String()).
		Str("rate", m.rate.String()).
		Msg("Redeem")
	return nil
}

// BalanceOf returns the supplier's live yield-token balance.
func (m *MoneyMarket) BalanceOf(addr types.Address) sdkmath.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balanceOf(addr)
}

func (m *MoneyMarket) balanceOf(addr types.Address) sdkmath.Int {
	if bal, ok := m.balances[addr]; ok {
		return bal
	}
	return sdkmath.ZeroInt()
}

// ExchangeRateCurrent returns the current stablecoin-per-yield-token rate.
func (m *MoneyMarket) ExchangeRateCurrent() sdkmath.LegacyDec {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rate
}

// AdvanceBlocks progresses the simulated chain by n blocks, compounding the
// exchange rate once per block.
func (m *MoneyMarket) AdvanceBlocks(n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := uint64(0); i < n; i++ {
		m.rate = m.rate.Mul(m.yieldPerBlock)
	}
	m.block += n

	marketLogger.Debug().
		Uint64("block", m.block).
		Str("rate", m.rate.String()).
		Msg("Advanced blocks")
}

// Block returns the current simulated block height.
func (m *MoneyMarket) Block() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.block
}

// SetPaused toggles the market's paused state. While paused, mint and both
// redeem paths fail with token.ErrMarketPaused.
func (m *MoneyMarket) SetPaused(paused bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = paused
	marketLogger.Warn().Bool("paused", paused).Msg("Market paused state changed")
}
