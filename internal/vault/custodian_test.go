package vault_test

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/floatify/custodian/internal/market"
	"github.com/floatify/custodian/internal/token"
	"github.com/floatify/custodian/internal/types"
	"github.com/floatify/custodian/internal/vault"
)

const (
	vaultAddr  types.Address = "0xVAULT000000000000000000000000000000000001"
	owner      types.Address = "0xOWNER000000000000000000000000000000000001"
	marketAddr types.Address = "0xCDAI0000000000000000000000000000000000001"
	dest       types.Address = "0xDEST0000000000000000000000000000000000001"
	stranger   types.Address = "0xEVIL0000000000000000000000000000000000001"
)

// units converts whole stablecoin into 18-decimal ledger units.
func units(n int64) sdkmath.Int {
	return sdkmath.NewIntWithDecimal(n, 18)
}

type captureRecorder struct {
	events []vault.Event
}

func (c *captureRecorder) Record(event vault.Event) error {
	c.events = append(c.events, event)
	return nil
}

type fixture struct {
	dai      *market.ERC20
	market   *market.MoneyMarket
	cust     *vault.Custodian
	recorder *captureRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dai := market.NewERC20("DAI")
	mm, err := market.NewMoneyMarket(marketAddr, dai,
		sdkmath.LegacyMustNewDecFromStr("0.02"),
		sdkmath.LegacyMustNewDecFromStr("1.00001"))
	require.NoError(t, err)

	recorder := &captureRecorder{}
	cust, err := vault.New(vaultAddr, owner, dai, mm, mm.Address(), recorder)
	require.NoError(t, err)

	return &fixture{dai: dai, market: mm, cust: cust, recorder: recorder}
}

func (f *fixture) fund(t *testing.T, amount sdkmath.Int) {
	t.Helper()
	require.NoError(t, f.dai.Issue(vaultAddr, amount))
}

func (f *fixture) lastEvents(n int) []vault.Event {
	return f.recorder.events[len(f.recorder.events)-n:]
}

func TestNewGrantsUnlimitedAllowance(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.dai.Allowance(vaultAddr, marketAddr).Equal(types.MaxAllowance))
}

func TestNewRejectsZeroIdentities(t *testing.T) {
	dai := market.NewERC20("DAI")
	mm, err := market.NewMoneyMarket(marketAddr, dai,
		sdkmath.LegacyMustNewDecFromStr("0.02"),
		sdkmath.LegacyMustNewDecFromStr("1.00001"))
	require.NoError(t, err)

	_, err = vault.New(types.ZeroAddress, owner, dai, mm, mm.Address())
	require.ErrorIs(t, err, vault.ErrInvalidAddress)

	_, err = vault.New(vaultAddr, types.ZeroAddress, dai, mm, mm.Address())
	require.ErrorIs(t, err, vault.ErrInvalidAddress)

	_, err = vault.New(vaultAddr, owner, nil, mm, mm.Address())
	require.ErrorIs(t, err, vault.ErrInvalidCollaborator)
}

func TestDepositConvertsFullBalance(t *testing.T) {
	f := newFixture(t)
	f.fund(t, units(100))

	converted, err := f.cust.Deposit(owner)
	require.NoError(t, err)
	require.True(t, converted.Equal(units(100)))

	// All stablecoin left the vault, yield tokens arrived.
	require.True(t, f.dai.BalanceOf(vaultAddr).IsZero())
	require.True(t, f.market.BalanceOf(vaultAddr).IsPositive())

	// Counter tracks the stablecoin amount, not the yield-token amount.
	require.True(t, f.cust.TotalDeposited().Equal(units(100)))
	require.True(t, f.cust.TotalWithdrawn().IsZero())

	events := f.lastEvents(1)
	require.Equal(t, vault.EventDeposit, events[0].Type)
	require.True(t, events[0].Amount.Equal(units(100)))
}

func TestDepositZeroBalanceIsNoOpWithEvent(t *testing.T) {
	f := newFixture(t)

	converted, err := f.cust.Deposit(owner)
	require.NoError(t, err)
	require.True(t, converted.IsZero())
	require.True(t, f.cust.TotalDeposited().IsZero())

	events := f.lastEvents(1)
	require.Equal(t, vault.EventDeposit, events[0].Type)
	require.True(t, events[0].Amount.IsZero())
}

func TestDepositFailureLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	f.fund(t, units(100))
	f.market.SetPaused(true)

	before := len(f.recorder.events)
	_, err := f.cust.Deposit(owner)
	require.ErrorIs(t, err, vault.ErrExternalCallFailed)
	require.ErrorIs(t, err, token.ErrMarketPaused)

	require.True(t, f.cust.TotalDeposited().IsZero())
	require.True(t, f.dai.BalanceOf(vaultAddr).Equal(units(100)))
	require.Len(t, f.recorder.events, before)
}

func TestRedeemAndWithdrawMaxAfterGrowth(t *testing.T) {
	f := newFixture(t)
	f.fund(t, units(100))

	_, err := f.cust.Deposit(owner)
	require.NoError(t, err)

	f.market.AdvanceBlocks(1000)

	received, err := f.cust.RedeemAndWithdrawMax(owner, dest)
	require.NoError(t, err)

	// Yield accrued, so the destination receives strictly more than went in.
	require.True(t, received.GT(units(100)))
	require.True(t, f.dai.BalanceOf(dest).Equal(received))

	// Vault is fully drained on both ledgers.
	require.True(t, f.dai.BalanceOf(vaultAddr).IsZero())
	require.True(t, f.market.BalanceOf(vaultAddr).IsZero())

	require.True(t, f.cust.TotalWithdrawn().Equal(received))

	events := f.lastEvents(2)
	require.Equal(t, vault.EventRedeemMax, events[0].Type)
	require.True(t, events[0].Amount.Equal(received))
	require.Equal(t, vault.EventWithdraw, events[1].Type)
	require.True(t, events[1].Amount.Equal(received))
	require.Equal(t, dest, events[1].Destination)
}

func TestRedeemAndWithdrawMaxTwoDeposits(t *testing.T) {
	f := newFixture(t)

	f.fund(t, units(100))
	_, err := f.cust.Deposit(owner)
	require.NoError(t, err)

	f.market.AdvanceBlocks(500)

	f.fund(t, units(100))
	_, err = f.cust.Deposit(owner)
	require.NoError(t, err)

	f.market.AdvanceBlocks(500)

	received, err := f.cust.RedeemAndWithdrawMax(owner, dest)
	require.NoError(t, err)

	// More than went in, but well under a 10% windfall.
	require.True(t, received.GT(units(200)))
	require.True(t, received.LT(units(220)))

	require.True(t, f.dai.BalanceOf(vaultAddr).IsZero())
	require.True(t, f.market.BalanceOf(vaultAddr).IsZero())
	require.True(t, f.cust.TotalDeposited().Equal(units(200)))
	require.True(t, f.cust.TotalWithdrawn().Equal(received))
}

func TestRedeemAndWithdrawMaxZeroBalance(t *testing.T) {
	f := newFixture(t)

	received, err := f.cust.RedeemAndWithdrawMax(owner, dest)
	require.NoError(t, err)
	require.True(t, received.IsZero())

	// Uniform event trail: both events still emitted, carrying zero.
	events := f.lastEvents(2)
	require.Equal(t, vault.EventRedeemMax, events[0].Type)
	require.True(t, events[0].Amount.IsZero())
	require.Equal(t, vault.EventWithdraw, events[1].Type)
	require.True(t, events[1].Amount.IsZero())
}

func TestRedeemAndWithdrawPartialExactAmount(t *testing.T) {
	f := newFixture(t)
	f.fund(t, units(100))
	_, err := f.cust.Deposit(owner)
	require.NoError(t, err)

	err = f.cust.RedeemAndWithdrawPartial(owner, dest, units(50))
	require.NoError(t, err)

	require.True(t, f.dai.BalanceOf(dest).Equal(units(50)))
	require.True(t, f.market.BalanceOf(vaultAddr).IsPositive())
	require.True(t, f.cust.TotalWithdrawn().Equal(units(50)))

	events := f.lastEvents(2)
	require.Equal(t, vault.EventRedeemPartial, events[0].Type)
	require.Equal(t, vault.EventWithdraw, events[1].Type)
}

func TestRedeemAndWithdrawPartialOverdraw(t *testing.T) {
	f := newFixture(t)
	f.fund(t, units(100))
	_, err := f.cust.Deposit(owner)
	require.NoError(t, err)

	before := len(f.recorder.events)
	err = f.cust.RedeemAndWithdrawPartial(owner, dest, units(500))
	require.ErrorIs(t, err, token.ErrInsufficientRedeemable)

	// The market's refusal propagates with no partial effects.
	require.True(t, f.cust.TotalWithdrawn().IsZero())
	require.True(t, f.dai.BalanceOf(dest).IsZero())
	require.Len(t, f.recorder.events, before)
}

func TestRedeemAndWithdrawPartialRejectsNegative(t *testing.T) {
	f := newFixture(t)
	err := f.cust.RedeemAndWithdrawPartial(owner, dest, sdkmath.NewInt(-1))
	require.ErrorIs(t, err, vault.ErrInvalidAmount)
}

func TestWithdrawRawPathNeverTouchesCounters(t *testing.T) {
	f := newFixture(t)
	f.fund(t, units(100))

	amount, err := f.cust.Withdraw(owner, dest)
	require.NoError(t, err)
	require.True(t, amount.Equal(units(100)))
	require.True(t, f.dai.BalanceOf(dest).Equal(units(100)))

	// Raw passthrough: both counters stay at zero.
	require.True(t, f.cust.TotalDeposited().IsZero())
	require.True(t, f.cust.TotalWithdrawn().IsZero())

	// Withdraw event only, no redeem event.
	events := f.lastEvents(1)
	require.Equal(t, vault.EventWithdraw, events[0].Type)
}

func TestWithdrawAfterDepositLeavesCountersAlone(t *testing.T) {
	f := newFixture(t)
	f.fund(t, units(100))
	_, err := f.cust.Deposit(owner)
	require.NoError(t, err)

	// Fresh stablecoin lands without a deposit call.
	f.fund(t, units(40))

	depositedBefore := f.cust.TotalDeposited()
	withdrawnBefore := f.cust.TotalWithdrawn()

	amount, err := f.cust.Withdraw(owner, dest)
	require.NoError(t, err)
	require.True(t, amount.Equal(units(40)))

	require.True(t, f.cust.TotalDeposited().Equal(depositedBefore))
	require.True(t, f.cust.TotalWithdrawn().Equal(withdrawnBefore))
}

func TestUnauthorizedCallersAreRejected(t *testing.T) {
	f := newFixture(t)
	f.fund(t, units(100))
	eventsBefore := len(f.recorder.events)

	_, err := f.cust.Deposit(stranger)
	require.ErrorIs(t, err, vault.ErrUnauthorized)

	_, err = f.cust.Withdraw(stranger, stranger)
	require.ErrorIs(t, err, vault.ErrUnauthorized)

	_, err = f.cust.RedeemAndWithdrawMax(stranger, stranger)
	require.ErrorIs(t, err, vault.ErrUnauthorized)

	err = f.cust.RedeemAndWithdrawPartial(stranger, stranger, units(1))
	require.ErrorIs(t, err, vault.ErrUnauthorized)

	err = f.cust.TransferControl(stranger, stranger)
	require.ErrorIs(t, err, vault.ErrUnauthorized)

	// Nothing moved, nothing was recorded.
	require.True(t, f.dai.BalanceOf(vaultAddr).Equal(units(100)))
	require.True(t, f.dai.BalanceOf(stranger).IsZero())
	require.True(t, f.cust.TotalDeposited().IsZero())
	require.True(t, f.cust.TotalWithdrawn().IsZero())
	require.Len(t, f.recorder.events, eventsBefore)
	require.Equal(t, owner, f.cust.Controller())
}

func TestTransferControlHandsOver(t *testing.T) {
	f := newFixture(t)
	newController := types.Address("0xNEW00000000000000000000000000000000000001")

	require.NoError(t, f.cust.TransferControl(owner, newController))
	require.Equal(t, newController, f.cust.Controller())

	events := f.lastEvents(1)
	require.Equal(t, vault.EventControlTransferred, events[0].Type)
	require.Equal(t, newController, events[0].Destination)

	// Old controller is locked out, new one works.
	_, err := f.cust.Deposit(owner)
	require.ErrorIs(t, err, vault.ErrUnauthorized)
	_, err = f.cust.Deposit(newController)
	require.NoError(t, err)
}

func TestTransferControlToZeroAddressIsPermitted(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.cust.TransferControl(owner, types.ZeroAddress))
	require.Equal(t, types.ZeroAddress, f.cust.Controller())

	// Permanently disabled: nobody can act anymore.
	_, err := f.cust.Deposit(owner)
	require.ErrorIs(t, err, vault.ErrUnauthorized)
}

func TestAllowanceInvariantHoldsAcrossOperations(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		f.fund(t, units(10))
		_, err := f.cust.Deposit(owner)
		require.NoError(t, err)
		f.market.AdvanceBlocks(100)
		_, err = f.cust.RedeemAndWithdrawMax(owner, dest)
		require.NoError(t, err)

		require.True(t, f.dai.Allowance(vaultAddr, marketAddr).Equal(types.MaxAllowance))
	}
}

func TestCountersAreMonotone(t *testing.T) {
	f := newFixture(t)

	prevDeposited := f.cust.TotalDeposited()
	prevWithdrawn := f.cust.TotalWithdrawn()

	step := func() {
		require.True(t, f.cust.TotalDeposited().GTE(prevDeposited))
		require.True(t, f.cust.TotalWithdrawn().GTE(prevWithdrawn))
		prevDeposited = f.cust.TotalDeposited()
		prevWithdrawn = f.cust.TotalWithdrawn()
	}

	f.fund(t, units(25))
	f.cust.Deposit(owner)
	step()
	f.market.AdvanceBlocks(50)
	f.cust.RedeemAndWithdrawPartial(owner, dest, units(5))
	step()
	f.cust.RedeemAndWithdrawMax(owner, dest)
	step()
	f.fund(t, units(3))
	f.cust.Withdraw(owner, dest)
	step()
}

func TestEventsCarryCounterSnapshots(t *testing.T) {
	f := newFixture(t)
	f.fund(t, units(100))
	_, err := f.cust.Deposit(owner)
	require.NoError(t, err)

	events := f.lastEvents(1)
	require.True(t, events[0].TotalDeposited.Equal(units(100)))
	require.True(t, events[0].TotalWithdrawn.IsZero())
	require.NotEqual(t, "", events[0].ID.String())
	require.False(t, events[0].Timestamp.IsZero())
}
