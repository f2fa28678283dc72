/*

This file contains the custodial vault core: the deposit/redeem/withdraw
state machine, its access-control boundary, and the two cumulative
accounting counters. The vault holds no balance state of its own; the
stablecoin and yield-token ledgers are always read live, and the counters
are a derived audit trail of yield-path flows only.

*/

package vault

import (
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/floatify/custodian/internal/logger"
	"github.com/floatify/custodian/internal/token"
	"github.com/floatify/custodian/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrUnauthorized        = errors.New("caller is not the controller")
	ErrExternalCallFailed  = errors.New("external token call failed")
	ErrInvalidAddress      = errors.New("address is invalid")
	ErrInvalidAmount       = errors.New("amount is invalid")
	ErrInvalidCollaborator = errors.New("token collaborator is invalid")
)

var vaultLogger = logger.GetForComponent("custodian")

// Custodian is the vault state machine. Exactly one controller identity may
// invoke its privileged operations. States are implicit in the external
// ledger balances; the only persisted words are the controller identity and
// the two cumulative counters.
//
// Operations are serialized by an internal mutex, standing in for the host
// chain's one-transaction-at-a-time execution. Each operation either commits
// in full or leaves counters and events untouched.
type Custodian struct {
	mu sync.Mutex

	// address is the vault's own account in the external ledgers.
	address    types.Address
	controller types.Address

	stablecoin token.Stablecoin
	market     token.YieldMarket
	// marketAddr is the identity granted the unlimited allowance, i.e. the
	// account the market pulls deposits through.
	marketAddr types.Address

	totalDeposited sdkmath.Int
	totalWithdrawn sdkmath.Int

	recorders []Recorder
	log       zerolog.Logger
}

// New constructs a custodian controlled by deployer and grants the money
// market the maximum representable allowance over the vault's stablecoin.
// The allowance is never revoked for the lifetime of the custodian, so
// deposits can never fail for lack of allowance.
func New(address, deployer types.Address, stablecoin token.Stablecoin, market token.YieldMarket, marketAddr types.Address, recorders ...Recorder) (*Custodian, error) {
	if address.IsZero() {
		return nil, errors.Join(ErrInvalidAddress, errors.New("vault address cannot be zero"))
	}
	if deployer.IsZero() {
		return nil, errors.Join(ErrInvalidAddress, errors.New("deployer address cannot be zero"))
	}
	if stablecoin == nil {
		return nil, errors.Join(ErrInvalidCollaborator, errors.New("stablecoin is nil"))
	}
	if market == nil {
		return nil, errors.Join(ErrInvalidCollaborator, errors.New("yield market is nil"))
	}
	if marketAddr.IsZero() {
		return nil, errors.Join(ErrInvalidAddress, errors.New("market address cannot be zero"))
	}

	if err := stablecoin.Approve(address, marketAddr, types.MaxAllowance); err != nil {
		return nil, errors.Join(ErrExternalCallFailed, fmt.Errorf("initial allowance grant failed: %w", err))
	}

	c := &Custodian{
		address:        address,
		controller:     deployer,
		stablecoin:     stablecoin,
		market:         market,
		marketAddr:     marketAddr,
		totalDeposited: sdkmath.ZeroInt(),
		totalWithdrawn: sdkmath.ZeroInt(),
		recorders:      recorders,
		log:            vaultLogger,
	}

	c.log.Info().
		Str("address", string(address)).
		Str("controller", string(deployer)).
		Msg("Custodian initialized, unlimited market allowance granted")

	return c, nil
}

// Address returns the vault's own account in the external ledgers.
func (c *Custodian) Address() types.Address {
	return c.address
}

// Controller returns the current controller identity.
func (c *Custodian) Controller() types.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

// TotalDeposited returns the cumulative stablecoin ever converted into
// yield tokens. Monotonically non-decreasing.
func (c *Custodian) TotalDeposited() sdkmath.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalDeposited
}

// TotalWithdrawn returns the cumulative stablecoin ever produced by redeem
// operations and forwarded out. Monotonically non-decreasing.
func (c *Custodian) TotalWithdrawn() sdkmath.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalWithdrawn
}

// MarketBalance returns the vault's live yield-token balance, read from the
// external market.
func (c *Custodian) MarketBalance() sdkmath.Int {
	return c.market.BalanceOf(c.address)
}

// StablecoinBalance returns the vault's live stablecoin balance.
func (c *Custodian) StablecoinBalance() sdkmath.Int {
	return c.stablecoin.BalanceOf(c.address)
}

// TransferControl hands control to newController. Only the current
// controller may call it. A zero destination is permitted; locking the
// custodian out permanently is the caller's responsibility.
func (c *Custodian) TransferControl(caller, newController types.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireController(caller); err != nil {
		return err
	}

	previous := c.controller
	c.controller = newController
	c.emit(Event{
		Type:        EventControlTransferred,
		Amount:      sdkmath.ZeroInt(),
		Destination: newController,
	})

	c.log.Info().
		Str("previous", string(previous)).
		Str("new", string(newController)).
		Msg("Control transferred")
	return nil
}

// Deposit converts the vault's entire live stablecoin balance into yield
// tokens. totalDeposited grows by exactly the stablecoin amount converted,
// never by the yield-token amount received. A zero balance is tolerated as
// a no-op conversion: the external mint is skipped and Deposit(0) is still
// emitted so the event trail stays uniform.
func (c *Custodian) Deposit(caller types.Address) (sdkmath.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireController(caller); err != nil {
		return sdkmath.Int{}, err
	}

	amount := c.stablecoin.BalanceOf(c.address)
	if amount.IsPositive() {
		if err := c.market.Mint(c.address, amount); err != nil {
			return sdkmath.Int{}, errors.Join(ErrExternalCallFailed, err)
		}
		c.totalDeposited = c.totalDeposited.Add(amount)
	}

	c.emit(Event{Type: EventDeposit, Amount: amount})

	c.log.Info().
		Str("amount", amount.String()).
		Str("totalDeposited", c.totalDeposited.String()).
		Msg("Deposited into yield market")
	return amount, nil
}

// RedeemAndWithdrawMax redeems the vault's entire yield-token balance and
// forwards every unit of stablecoin produced to destination. The amount
// received is measured as a balance delta because the output depends on the
// market's current exchange rate. A zero yield-token balance is tolerated:
// both events are still emitted carrying zero.
func (c *Custodian) RedeemAndWithdrawMax(caller, destination types.Address) (sdkmath.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireController(caller); err != nil {
		return sdkmath.Int{}, err
	}

	tokens := c.market.BalanceOf(c.address)
	before := c.stablecoin.BalanceOf(c.address)

	if tokens.IsPositive() {
		if err := c.market.Redeem(c.address, tokens); err != nil {
			return sdkmath.Int{}, errors.Join(ErrExternalCallFailed, err)
		}
	}

	received := c.stablecoin.BalanceOf(c.address).Sub(before)
	if received.IsPositive() {
		if err := c.stablecoin.Transfer(c.address, destination, received); err != nil {
			return sdkmath.Int{}, errors.Join(ErrExternalCallFailed, err)
		}
	}
	c.totalWithdrawn = c.totalWithdrawn.Add(received)

	c.emit(Event{Type: EventRedeemMax, Amount: received})
	c.emit(Event{Type: EventWithdraw, Amount: received, Destination: destination})

	c.log.Info().
		Str("tokensRedeemed", tokens.String()).
		Str("received", received.String()).
		Str("destination", string(destination)).
		Str("totalWithdrawn", c.totalWithdrawn.String()).
		Msg("Redeemed all and withdrew")
	return received, nil
}

// RedeemAndWithdrawPartial redeems exactly amount of stablecoin from the
// yield market and forwards it to destination. Requesting more than the
// vault's holdings can produce fails with the market's own
// token.ErrInsufficientRedeemable; the condition is never pre-validated
// locally, the market is the authority.
func (c *Custodian) RedeemAndWithdrawPartial(caller, destination types.Address, amount sdkmath.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireController(caller); err != nil {
		return err
	}
	if amount.IsNil() || amount.IsNegative() {
		return errors.Join(ErrInvalidAmount, fmt.Errorf("requested %v", amount))
	}

	if err := c.market.RedeemUnderlying(c.address, amount); err != nil {
		if errors.Is(err, token.ErrInsufficientRedeemable) {
			return err
		}
		return errors.Join(ErrExternalCallFailed, err)
	}

	if amount.IsPositive() {
		if err := c.stablecoin.Transfer(c.address, destination, amount); err != nil {
			return errors.Join(ErrExternalCallFailed, err)
		}
	}
	c.totalWithdrawn = c.totalWithdrawn.Add(amount)

	c.emit(Event{Type: EventRedeemPartial, Amount: amount})
	c.emit(Event{Type: EventWithdraw, Amount: amount, Destination: destination})

	c.log.Info().
		Str("amount", amount.String()).
		Str("destination", string(destination)).
		Str("totalWithdrawn", c.totalWithdrawn.String()).
		Msg("Redeemed exact amount and withdrew")
	return nil
}

// Withdraw forwards the vault's entire live stablecoin balance to
// destination. This is the raw passthrough path for funds that never
// entered the yield market: neither counter moves, and no redeem event is
// emitted.
func (c *Custodian) Withdraw(caller, destination types.Address) (sdkmath.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireController(caller); err != nil {
		return sdkmath.Int{}, err
	}

	amount := c.stablecoin.BalanceOf(c.address)
	if amount.IsPositive() {
		if err := c.stablecoin.Transfer(c.address, destination, amount); err != nil {
			return sdkmath.Int{}, errors.Join(ErrExternalCallFailed, err)
		}
	}

	c.emit(Event{Type: EventWithdraw, Amount: amount, Destination: destination})

	c.log.Info().
		Str("amount", amount.String()).
		Str("destination", string(destination)).
		Msg("Withdrew raw stablecoin balance")
	return amount, nil
}

// requireController gates every privileged operation. On mismatch no state
// is touched and no external call is attempted.
func (c *Custodian) requireController(caller types.Address) error {
	if caller != c.controller {
		return errors.Join(ErrUnauthorized,
			fmt.Errorf("caller %s, controller %s", caller, c.controller))
	}
	return nil
}

// emit stamps the event and fans it out to every recorder. Called with the
// mutex held, after all state for the operation has committed. Recorder
// failures are logged, not propagated: recorders mirror the trail, they do
// not own it.
func (c *Custodian) emit(event Event) {
	event.ID = uuid.New()
	event.Timestamp = time.Now().UTC()
	event.TotalDeposited = c.totalDeposited
	event.TotalWithdrawn = c.totalWithdrawn

	for _, r := range c.recorders {
		if err := r.Record(event); err != nil {
			c.log.Error().Err(err).
				Str("type", string(event.Type)).
				Msg("Event recorder failed")
		}
	}
}
