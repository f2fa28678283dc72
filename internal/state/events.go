/*

This file persists the custodian's emitted events and counter snapshots.
Receipts are append-only; the totals row is overwritten with each event so
an operator can read the latest counters without scanning the trail.

*/

package state

import (
	"database/sql"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/floatify/custodian/internal/types"
	"github.com/floatify/custodian/internal/vault"
)

// EventReceipt is a persisted vault event as read back from the database.
type EventReceipt struct {
	ReceiptID      int           `json:"receipt_id"`
	EventID        string        `json:"event_id"`
	Type           string        `json:"type"`
	Amount         sdkmath.Int   `json:"amount"`
	Destination    types.Address `json:"destination,omitempty"`
	TotalDeposited sdkmath.Int   `json:"total_deposited"`
	TotalWithdrawn sdkmath.Int   `json:"total_withdrawn"`
	Timestamp      string        `json:"timestamp"`
}

// SaveEventReceipt appends one event to the vault_events table and refreshes
// the vault_totals snapshot row in a single transaction.
func SaveEventReceipt(event vault.Event) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	tx, err := DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin receipt transaction: %w", err)
	}
	defer tx.Rollback()

	insertSQL := `
		INSERT INTO vault_events
			(event_id, event_type, amount, destination, total_deposited, total_withdrawn, event_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	var destination sql.NullString
	if event.Destination != "" {
		destination = sql.NullString{String: string(event.Destination), Valid: true}
	}
	if _, err := tx.Exec(insertSQL,
		event.ID.String(), string(event.Type), event.Amount.String(), destination,
		event.TotalDeposited.String(), event.TotalWithdrawn.String(), event.Timestamp,
	); err != nil {
		return fmt.Errorf("failed to insert event receipt: %w", err)
	}

	updateSQL := `
		UPDATE vault_totals
		SET total_deposited = $1, total_withdrawn = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
	`
	if _, err := tx.Exec(updateSQL, event.TotalDeposited.String(), event.TotalWithdrawn.String()); err != nil {
		return fmt.Errorf("failed to update totals snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit receipt transaction: %w", err)
	}

	log.Debug().
		Str("eventId", event.ID.String()).
		Str("type", string(event.Type)).
		Msg("Persisted vault event receipt")
	return nil
}

// GetRecentEvents retrieves recent event receipts, newest first.
func GetRecentEvents(limit int) ([]EventReceipt, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	if limit <= 0 || limit > 500 {
		limit = 50 // Default limit
	}

	query := `
		SELECT receipt_id, event_id, event_type, amount, destination,
			total_deposited, total_withdrawn, event_timestamp
		FROM vault_events
		ORDER BY receipt_id DESC
		LIMIT $1
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query recent vault events")
		return nil, fmt.Errorf("failed to query recent vault events: %w", err)
	}
	defer rows.Close()

	var receipts []EventReceipt
	for rows.Next() {
		var r EventReceipt
		var amount, deposited, withdrawn string
		var destination sql.NullString

		err := rows.Scan(&r.ReceiptID, &r.EventID, &r.Type, &amount, &destination,
			&deposited, &withdrawn, &r.Timestamp)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan event receipt row")
			continue // Skip this row and continue with others
		}

		if r.Amount, err = parseNumeric(amount); err != nil {
			log.Error().Err(err).Int("receiptId", r.ReceiptID).Msg("Invalid amount in event receipt")
			continue
		}
		if r.TotalDeposited, err = parseNumeric(deposited); err != nil {
			log.Error().Err(err).Int("receiptId", r.ReceiptID).Msg("Invalid total_deposited in event receipt")
			continue
		}
		if r.TotalWithdrawn, err = parseNumeric(withdrawn); err != nil {
			log.Error().Err(err).Int("receiptId", r.ReceiptID).Msg("Invalid total_withdrawn in event receipt")
			continue
		}
		if destination.Valid {
			r.Destination = types.Address(destination.String)
		}

		receipts = append(receipts, r)
	}

	if err := rows.Err(); err != nil {
		log.Error().Err(err).Msg("Error occurred during row iteration")
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return receipts, nil
}

// LoadTotals reads the persisted counter snapshot.
func LoadTotals() (totalDeposited, totalWithdrawn sdkmath.Int, err error) {
	zero := sdkmath.ZeroInt()
	if DB == nil {
		return zero, zero, fmt.Errorf("database not initialized")
	}

	query := `SELECT total_deposited, total_withdrawn FROM vault_totals WHERE id = 1;`

	var deposited, withdrawn string
	row := DB.QueryRow(query)
	if err := row.Scan(&deposited, &withdrawn); err != nil {
		if err == sql.ErrNoRows {
			return zero, zero, nil
		}
		return zero, zero, fmt.Errorf("failed to load totals snapshot: %w", err)
	}

	if totalDeposited, err = parseNumeric(deposited); err != nil {
		return zero, zero, err
	}
	if totalWithdrawn, err = parseNumeric(withdrawn); err != nil {
		return zero, zero, err
	}
	return totalDeposited, totalWithdrawn, nil
}

// parseNumeric converts a NUMERIC column value into an sdkmath.Int.
func parseNumeric(value string) (sdkmath.Int, error) {
	parsed, ok := sdkmath.NewIntFromString(value)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("numeric column value is not an integer: %q", value)
	}
	return parsed, nil
}

// Mirror is a vault.Recorder that persists each event receipt. Failures are
// surfaced to the custodian, which logs and continues: the mirror is audit
// only, never authoritative.
type Mirror struct{}

func (Mirror) Record(event vault.Event) error {
	return SaveEventReceipt(event)
}
