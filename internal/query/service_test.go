package query_test

import (
	"context"
	"testing"
	"time"

	"PerpMarket/internal/event"
	"PerpMarket/internal/persistence"
	"PerpMarket/internal/projection"
	"PerpMarket/internal/query"
	"PerpMarket/internal/testutil"

	"github.com/rs/zerolog"
)

func TestEventLogAndFundingProjection(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	migrator := persistence.NewMigrator(db, "../../migrations", zerolog.Nop())
	if err := migrator.Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	input := make(chan event.Envelope, 16)
	worker := persistence.NewWorker(db, input, 8, 50*time.Millisecond, zerolog.Nop(), nil)
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	payloads := []event.Payload{
		event.FundingPaid{
			OiLongBefore: testutil.Fp(10), OiLongAfter: testutil.Fp(9),
			OiShortBefore: testutil.Fp(4), OiShortAfter: testutil.Fp(5),
			ElapsedSecs: 60,
		},
		event.ParamUpdated{Name: "k", Value: testutil.FpFrac(1, 1000)},
		event.FundingPaid{
			OiLongBefore: testutil.Fp(9), OiLongAfter: testutil.Fp(8),
			OiShortBefore: testutil.Fp(5), OiShortAfter: testutil.Fp(6),
			ElapsedSecs: 120,
		},
	}
	for i, p := range payloads {
		env, err := event.Wrap(uint64(i+1), 1_700_000_000+int64(i), p)
		if err != nil {
			t.Fatal(err)
		}
		input <- env
	}
	close(input)
	if err := <-done; err != nil {
		t.Fatalf("worker: %v", err)
	}

	if err := projection.Rebuild(ctx, db); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	svc := query.NewService(db)

	last, err := svc.LastPersistedSequence(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if last != 3 {
		t.Errorf("last sequence: got %d, want 3", last)
	}

	events, err := svc.ListEvents(ctx, 0, 10, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("events: got %d, want 3", len(events))
	}
	if events[0].Sequence != 1 || events[2].Sequence != 3 {
		t.Errorf("events not ordered oldest first: %v, %v", events[0].Sequence, events[2].Sequence)
	}

	funding, err := svc.ListEvents(ctx, 0, 10, "FundingPaid")
	if err != nil {
		t.Fatal(err)
	}
	if len(funding) != 2 {
		t.Errorf("filtered events: got %d, want 2", len(funding))
	}

	e, err := svc.GetEvent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if e == nil || e.EventType != "ParamUpdated" {
		t.Errorf("event 2: got %+v, want ParamUpdated", e)
	}
	missing, err := svc.GetEvent(ctx, 99)
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Errorf("absent event should be nil, got %+v", missing)
	}

	entries, asOf, err := svc.FundingHistory(ctx, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if asOf != 3 {
		t.Errorf("asOfSequence: got %d, want 3", asOf)
	}
	if len(entries) != 2 {
		t.Fatalf("funding entries: got %d, want 2", len(entries))
	}
	if entries[0].Sequence != 3 {
		t.Errorf("funding history should be newest first, got sequence %d", entries[0].Sequence)
	}
	if entries[0].OiLongAfter != testutil.Fp(8).String() {
		t.Errorf("oiLongAfter: got %s, want %s", entries[0].OiLongAfter, testutil.Fp(8))
	}

	// Cursor pagination: entries strictly before sequence 3.
	page, _, err := svc.FundingHistory(ctx, 10, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 || page[0].Sequence != 1 {
		t.Errorf("paged entries: got %+v, want single sequence 1", page)
	}
}
