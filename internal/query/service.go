// Package query serves read-only lookups against the Postgres event log
// and its projections. Responses carry AsOfSequence so callers can reason
// about freshness relative to the live market sequence.
package query

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// StoredEvent is one journaled envelope as read back from the log.
type StoredEvent struct {
	Sequence      uint64          `json:"sequence"`
	EventType     string          `json:"eventType"`
	FeedTimestamp int64           `json:"feedTimestamp"`
	EmittedAt     time.Time       `json:"emittedAt"`
	Payload       json.RawMessage `json:"payload"`
}

// FundingEntry is one row of the funding read model. Amounts stay decimal
// strings end to end.
type FundingEntry struct {
	Sequence      uint64 `json:"sequence"`
	FeedTimestamp int64  `json:"feedTimestamp"`
	OiLongBefore  string `json:"oiLongBefore"`
	OiLongAfter   string `json:"oiLongAfter"`
	OiShortBefore string `json:"oiShortBefore"`
	OiShortAfter  string `json:"oiShortAfter"`
	ElapsedSecs   int64  `json:"elapsedSecs"`
}

type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// ListEvents returns up to limit events with sequence > after, oldest
// first. eventType filters when non-empty.
func (s *Service) ListEvents(ctx context.Context, after uint64, limit int, eventType string) ([]StoredEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	q := `
		SELECT sequence, event_type, feed_timestamp, emitted_at, payload
		FROM perpmarket.events
		WHERE sequence > $1
	`
	args := []interface{}{after}
	if eventType != "" {
		q += ` AND event_type = $2`
		args = append(args, eventType)
	}
	q += fmt.Sprintf(` ORDER BY sequence LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var e StoredEvent
		if err := rows.Scan(&e.Sequence, &e.EventType, &e.FeedTimestamp, &e.EmittedAt, &e.Payload); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetEvent returns a single event by sequence, or (nil, nil) if absent.
func (s *Service) GetEvent(ctx context.Context, sequence uint64) (*StoredEvent, error) {
	var e StoredEvent
	err := s.db.QueryRowContext(ctx, `
		SELECT sequence, event_type, feed_timestamp, emitted_at, payload
		FROM perpmarket.events
		WHERE sequence = $1
	`, sequence).Scan(&e.Sequence, &e.EventType, &e.FeedTimestamp, &e.EmittedAt, &e.Payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query event: %w", err)
	}
	return &e, nil
}

// FundingHistory pages the funding read model newest first, with
// cursor-based pagination on sequence.
func (s *Service) FundingHistory(ctx context.Context, limit int, before uint64) ([]FundingEntry, uint64, error) {
	asOf, err := s.watermark(ctx)
	if err != nil {
		return nil, 0, err
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	q := `
		SELECT sequence, feed_timestamp, oi_long_before, oi_long_after,
		       oi_short_before, oi_short_after, elapsed_secs
		FROM perpmarket.funding_history
	`
	args := []interface{}{}
	if before > 0 {
		q += ` WHERE sequence < $1`
		args = append(args, before)
	}
	q += fmt.Sprintf(` ORDER BY sequence DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query funding history: %w", err)
	}
	defer rows.Close()

	var out []FundingEntry
	for rows.Next() {
		var e FundingEntry
		if err := rows.Scan(&e.Sequence, &e.FeedTimestamp,
			&e.OiLongBefore, &e.OiLongAfter,
			&e.OiShortBefore, &e.OiShortAfter, &e.ElapsedSecs); err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, asOf, rows.Err()
}

// LastPersistedSequence is the highest sequence in the event log.
func (s *Service) LastPersistedSequence(ctx context.Context) (uint64, error) {
	var seq uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) FROM perpmarket.events`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("query last sequence: %w", err)
	}
	return seq, nil
}

func (s *Service) watermark(ctx context.Context) (uint64, error) {
	var seq uint64
	err := s.db.QueryRowContext(ctx, `
		SELECT last_sequence FROM perpmarket.projection_watermark WHERE worker_id = 'funding'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query watermark: %w", err)
	}
	return seq, nil
}
