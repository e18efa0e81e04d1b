// Package projection maintains read-model tables derived from the Postgres
// event log. Projections are eventually consistent and can always be
// rebuilt by replaying the log.
package projection

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const workerID = "funding"

// Worker tails perpmarket.events past a per-worker watermark and projects
// FundingPaid payloads into perpmarket.funding_history.
type Worker struct {
	db        *sql.DB
	interval  time.Duration
	batchSize int
	log       zerolog.Logger
}

func NewWorker(db *sql.DB, interval time.Duration, batchSize int, log zerolog.Logger) *Worker {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Worker{db: db, interval: interval, batchSize: batchSize, log: log}
}

// Run polls until ctx is cancelled. A failed pass is logged and retried on
// the next tick; the watermark only advances on commit.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.projectOnce(ctx); err != nil {
				w.log.Warn().Err(err).Msg("projection pass failed")
			}
		}
	}
}

// projectOnce advances the watermark by at most one batch of events,
// inserting funding rows for the FundingPaid events inside it.
func (w *Worker) projectOnce(ctx context.Context) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var watermark int64
	err = tx.QueryRowContext(ctx, `
		SELECT last_sequence FROM perpmarket.projection_watermark WHERE worker_id = $1
	`, workerID).Scan(&watermark)
	if err == sql.ErrNoRows {
		watermark = 0
	} else if err != nil {
		return fmt.Errorf("read watermark: %w", err)
	}

	var upTo int64
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(sequence), $1) FROM (
			SELECT sequence FROM perpmarket.events
			WHERE sequence > $1
			ORDER BY sequence
			LIMIT $2
		) batch
	`, watermark, w.batchSize).Scan(&upTo)
	if err != nil {
		return fmt.Errorf("scan batch head: %w", err)
	}
	if upTo == watermark {
		return tx.Commit()
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO perpmarket.funding_history
			(sequence, feed_timestamp, oi_long_before, oi_long_after,
			 oi_short_before, oi_short_after, elapsed_secs)
		SELECT sequence, feed_timestamp,
			(payload->>'oiLongBefore')::NUMERIC,
			(payload->>'oiLongAfter')::NUMERIC,
			(payload->>'oiShortBefore')::NUMERIC,
			(payload->>'oiShortAfter')::NUMERIC,
			(payload->>'elapsedSecs')::BIGINT
		FROM perpmarket.events
		WHERE event_type = 'FundingPaid' AND sequence > $1 AND sequence <= $2
		ON CONFLICT (sequence) DO NOTHING
	`, watermark, upTo)
	if err != nil {
		return fmt.Errorf("project funding rows: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO perpmarket.projection_watermark (worker_id, last_sequence, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $2, updated_at = NOW()
	`, workerID, upTo); err != nil {
		return fmt.Errorf("advance watermark: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	rows, _ := res.RowsAffected()
	if rows > 0 {
		w.log.Debug().
			Int64("rows", rows).
			Int64("watermark", upTo).
			Msg("funding history projected")
	}
	return nil
}

// Rebuild truncates the read model and replays the whole event log.
func Rebuild(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`TRUNCATE perpmarket.funding_history`,
		fmt.Sprintf(`DELETE FROM perpmarket.projection_watermark WHERE worker_id = '%s'`, workerID),
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate: %w", err)
		}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO perpmarket.funding_history
			(sequence, feed_timestamp, oi_long_before, oi_long_after,
			 oi_short_before, oi_short_after, elapsed_secs)
		SELECT sequence, feed_timestamp,
			(payload->>'oiLongBefore')::NUMERIC,
			(payload->>'oiLongAfter')::NUMERIC,
			(payload->>'oiShortBefore')::NUMERIC,
			(payload->>'oiShortAfter')::NUMERIC,
			(payload->>'elapsedSecs')::BIGINT
		FROM perpmarket.events
		WHERE event_type = 'FundingPaid'
		ON CONFLICT (sequence) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("rebuild funding history: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO perpmarket.projection_watermark (worker_id, last_sequence, updated_at)
		SELECT $1, COALESCE(MAX(sequence), 0), NOW() FROM perpmarket.events
		ON CONFLICT (worker_id) DO UPDATE
			SET last_sequence = EXCLUDED.last_sequence, updated_at = NOW()
	`, workerID)
	if err != nil {
		return fmt.Errorf("rebuild watermark: %w", err)
	}
	return nil
}
