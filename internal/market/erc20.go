/*

This file contains an in-memory ERC20-style ledger used as the stablecoin
collaborator in sim mode and in tests. It implements the full transfer,
approve and transferFrom semantics so that the money market's pull-based
mint behaves the same way it does against the real token contract.

*/

package market

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/floatify/custodian/internal/token"
	"github.com/floatify/custodian/internal/types"
)

// ERC20 is a ledgered fungible token. It implements token.Stablecoin.
type ERC20 struct {
	mu         sync.RWMutex
	symbol     string
	balances   map[types.Address]sdkmath.Int
	allowances map[types.Address]map[types.Address]sdkmath.Int
}

// NewERC20 creates an empty ledger for the given symbol.
func NewERC20(symbol string) *ERC20 {
	return &ERC20{
		symbol:     symbol,
		balances:   make(map[types.Address]sdkmath.Int),
		allowances: make(map[types.Address]map[types.Address]sdkmath.Int),
	}
}

// Symbol returns the token symbol, e.g. "DAI".
func (t *ERC20) Symbol() string {
	return t.symbol
}

// BalanceOf returns the live balance of addr.
func (t *ERC20) BalanceOf(addr types.Address) sdkmath.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balanceOf(addr)
}

func (t *ERC20) balanceOf(addr types.Address) sdkmath.Int {
	if bal, ok := t.balances[addr]; ok {
		return bal
	}
	return sdkmath.ZeroInt()
}

// Transfer moves amount from one account to another.
func (t *ERC20) Transfer(from, to types.Address, amount sdkmath.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transfer(from, to, amount)
}

func (t *ERC20) transfer(from, to types.Address, amount sdkmath.Int) error {
	bal := t.balanceOf(from)
	if bal.LT(amount) {
		return errors.Join(token.ErrInsufficientBalance,
			fmt.Errorf("%s: %s holds %s, needs %s", t.symbol, from, bal, amount))
	}
	t.balances[from] = bal.Sub(amount)
	t.balances[to] = t.balanceOf(to).Add(amount)
	return nil
}

// Approve grants spender an allowance over owner's balance, replacing any
// previous allowance.
func (t *ERC20) Approve(owner, spender types.Address, amount sdkmath.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[types.Address]sdkmath.Int)
	}
	t.allowances[owner][spender] = amount
	return nil
}

// Allowance returns the remaining allowance spender holds over owner.
func (t *ERC20) Allowance(owner, spender types.Address) sdkmath.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if granted, ok := t.allowances[owner]; ok {
		if amount, ok := granted[spender]; ok {
			return amount
		}
	}
	return sdkmath.ZeroInt()
}

// TransferFrom moves amount from owner to recipient on behalf of spender,
// consuming spender's allowance. A MaxAllowance grant is treated as
// unlimited and never decremented, matching mainline ERC20 behavior.
func (t *ERC20) TransferFrom(spender, owner, to types.Address, amount sdkmath.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	granted := sdkmath.ZeroInt()
	if byOwner, ok := t.allowances[owner]; ok {
		if a, ok := byOwner[spender]; ok {
			granted = a
		}
	}
	if granted.LT(amount) {
		return errors.Join(token.ErrInsufficientAllowance,
			fmt.Errorf("%s: %s allows %s only %s, needs %s", t.symbol, owner, spender, granted, amount))
	}

	if err := t.transfer(owner, to, amount); err != nil {
		return err
	}
	if !granted.Equal(types.MaxAllowance) {
		t.allowances[owner][spender] = granted.Sub(amount)
	}
	return nil
}

// Issue credits newly created tokens to addr. Sim-mode faucet; the real
// stablecoin contract mints through its own governance path.
func (t *ERC20) Issue(addr types.Address, amount sdkmath.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[addr] = t.balanceOf(addr).Add(amount)
	return nil
}

// validateAmount rejects nil and negative amounts before they reach the
// ledger maps.
func validateAmount(amount sdkmath.Int) error {
	if amount.IsNil() {
		return errors.Join(token.ErrInvalidAmount, errors.New("amount is nil"))
	}
	if amount.IsNegative() {
		return errors.Join(token.ErrInvalidAmount,
			fmt.Errorf("amount is negative: %s", amount))
	}
	return nil
}
