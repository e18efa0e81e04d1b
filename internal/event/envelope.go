// Package event defines the market's outbound event log: one envelope per
// state change, carrying a JSON payload for the persistence writer and the
// stream publisher.
package event

import (
	"encoding/json"
	"time"
)

// Type discriminates event payloads.
type Type int32

const (
	TypeUnknown Type = iota
	TypeBuild
	TypeUnwind
	TypeLiquidate
	TypeFundingPaid
	TypeParamUpdated
)

func (t Type) String() string {
	switch t {
	case TypeBuild:
		return "Build"
	case TypeUnwind:
		return "Unwind"
	case TypeLiquidate:
		return "Liquidate"
	case TypeFundingPaid:
		return "FundingPaid"
	case TypeParamUpdated:
		return "ParamUpdated"
	default:
		return "Unknown"
	}
}

// Subject is the NATS subject suffix for the event type, lower-cased for
// subscription filtering.
func (t Type) Subject() string {
	switch t {
	case TypeBuild:
		return "build"
	case TypeUnwind:
		return "unwind"
	case TypeLiquidate:
		return "liquidate"
	case TypeFundingPaid:
		return "funding"
	case TypeParamUpdated:
		return "param"
	default:
		return "unknown"
	}
}

// Payload is implemented by every event body.
type Payload interface {
	EventType() Type
}

// Envelope wraps every event emitted by the market.
type Envelope struct {
	// Global monotonic sequence assigned by the market under its write lock.
	Sequence uint64 `json:"sequence"`

	Type Type `json:"type"`

	// Feed timestamp of the operation, not wall clock.
	Timestamp int64 `json:"timestamp"`

	// Wall-clock emission time, for the persistence layer only.
	EmittedAt time.Time `json:"emittedAt"`

	Payload json.RawMessage `json:"payload"`
}

// Wrap seals a payload into an envelope. Marshaling a payload struct cannot
// fail, so an error here is a programming bug surfaced immediately.
func Wrap(sequence uint64, timestamp int64, p Payload) (Envelope, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Sequence:  sequence,
		Type:      p.EventType(),
		Timestamp: timestamp,
		EmittedAt: time.Now().UTC(),
		Payload:   raw,
	}, nil
}
