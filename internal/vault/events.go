package vault

import (
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"

	"github.com/floatify/custodian/internal/logger"
	"github.com/floatify/custodian/internal/types"
)

// EventType identifies a domain event emitted by the custodian.
type EventType string

const (
	EventDeposit            EventType = "DEPOSIT"
	EventRedeemMax          EventType = "REDEEM_MAX"
	EventRedeemPartial      EventType = "REDEEM_PARTIAL"
	EventWithdraw           EventType = "WITHDRAW"
	EventControlTransferred EventType = "CONTROL_TRANSFERRED"
)

// Event is a single entry in the custodian's audit trail. Amount is
// denominated in stablecoin units; Destination is set for withdraw events
// (the receiving account) and for control transfers (the new controller).
// Each event carries a snapshot of both cumulative counters taken after the
// operation committed, so the trail can be audited without replaying it.
type Event struct {
	ID             uuid.UUID     `json:"id"`
	Type           EventType     `json:"type"`
	Amount         sdkmath.Int   `json:"amount"`
	Destination    types.Address `json:"destination,omitempty"`
	TotalDeposited sdkmath.Int   `json:"total_deposited"`
	TotalWithdrawn sdkmath.Int   `json:"total_withdrawn"`
	Timestamp      time.Time     `json:"timestamp"`
}

// Recorder receives events after the operation that produced them has
// committed. Recorders are audit mirrors, never authoritative: a recorder
// failure is logged and does not unwind the operation.
type Recorder interface {
	Record(event Event) error
}

// LogRecorder writes events to the structured log.
type LogRecorder struct{}

var eventLogger = logger.GetForComponent("vault_events")

func (LogRecorder) Record(event Event) error {
	eventLogger.Info().
		Str("id", event.ID.String()).
		Str("type", string(event.Type)).
		Str("amount", event.Amount.String()).
		Str("destination", string(event.Destination)).
		Str("totalDeposited", event.TotalDeposited.String()).
		Str("totalWithdrawn", event.TotalWithdrawn.String()).
		Msg("Vault event")
	return nil
}
