// Package logging persists an audit trail of dispatch rounds: which
// mechanics were offered each breakdown and how the round resolved.
package logging

import (
	"context"
	"time"
)

// RoundRecord captures one dispatch round and its result.
type RoundRecord struct {
	Timestamp   time.Time          `json:"timestamp"`
	BreakdownID string             `json:"breakdown_id"`
	Number      string             `json:"number"`
	Attempt     int                `json:"attempt"`
	RadiusKm    float64            `json:"radius_km"`
	Offered     map[string]float64 `json:"offered"` // mechanicID -> distance km
	AcceptedBy  string             `json:"accepted_by,omitempty"`
	Outcome     string             `json:"outcome"` // matched | widened | exhausted | cancelled | error
	Error       string             `json:"error,omitempty"`
}

// LogQuery defines filters for retrieving records.
type LogQuery struct {
	Start       time.Time
	End         time.Time
	BreakdownID string
	MechanicID  string
	Outcome     string
}

// Matches reports whether the record satisfies every set filter.
func (q LogQuery) Matches(r RoundRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.BreakdownID != "" && r.BreakdownID != q.BreakdownID {
		return false
	}
	if q.Outcome != "" && r.Outcome != q.Outcome {
		return false
	}
	if q.MechanicID != "" {
		if r.AcceptedBy == q.MechanicID {
			return true
		}
		if _, ok := r.Offered[q.MechanicID]; !ok {
			return false
		}
	}
	return true
}

// LogStore persists RoundRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec RoundRecord) error
	Query(ctx context.Context, q LogQuery) ([]RoundRecord, error)
	Close() error
}

// NopStore discards records.
type NopStore struct{}

func (NopStore) Append(context.Context, RoundRecord) error          { return nil }
func (NopStore) Query(context.Context, LogQuery) ([]RoundRecord, error) { return nil, nil }
func (NopStore) Close() error                                       { return nil }
