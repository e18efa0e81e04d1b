// Package persistence journals market events to Postgres. The market sends
// every envelope over a blocking channel; the worker batches and writes
// them, retrying until the database accepts the batch. Nothing is dropped.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"PerpMarket/internal/event"
)

// EventWriter batch-inserts event envelopes into perpmarket.events using a
// multi-row INSERT. Writes are idempotent on the sequence column, so a
// retried batch never duplicates rows.
type EventWriter struct {
	db *sql.DB
}

func NewEventWriter(db *sql.DB) *EventWriter {
	return &EventWriter{db: db}
}

// WriteBatch writes a batch of envelopes inside the given transaction.
func (w *EventWriter) WriteBatch(ctx context.Context, tx *sql.Tx, batch []event.Envelope) error {
	if len(batch) == 0 {
		return nil
	}

	query := `INSERT INTO perpmarket.events
		(sequence, event_type, feed_timestamp, emitted_at, payload)
		VALUES `

	values := make([]string, 0, len(batch))
	args := make([]interface{}, 0, len(batch)*5)
	for i, e := range batch {
		base := i * 5
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5,
		))
		args = append(args,
			int64(e.Sequence), e.Type.String(), e.Timestamp, e.EmittedAt, []byte(e.Payload),
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}
