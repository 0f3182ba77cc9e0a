// Package metrics defines the sink interfaces used to record dispatch
// observability data. Concrete sinks live under infra/metrics.
package metrics

import (
	"time"

	"github.com/openroad/roadassist/core/model"
)

// OfferResult represents one offer delivered during a dispatch round and
// its resolution.
type OfferResult struct {
	BreakdownID string
	MechanicID  string
	Category    model.EmergencyCategory
	DistanceKm  float64
	Accepted    bool
	Latency     time.Duration
	Time        time.Time
}

// MetricsSink records offer results for observability purposes.
type MetricsSink interface {
	RecordOfferResults(results []OfferResult) error
}

// RoundResult captures one dispatch round: its attempt number, search
// radius, candidate count and outcome ("matched", "widened", "exhausted",
// "cancelled", "error").
type RoundResult struct {
	BreakdownID string
	Attempt     int
	RadiusKm    float64
	Candidates  int
	Outcome     string
	Duration    time.Duration
	Time        time.Time
}

// RoundRecorder is implemented by sinks able to record round outcomes.
type RoundRecorder interface {
	RecordRound(RoundResult) error
}

// SearchGaugeRecorder tracks the number of breakdowns currently searching.
type SearchGaugeRecorder interface {
	RecordActiveSearches(n int) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordOfferResults([]OfferResult) error { return nil }
func (NopSink) RecordRound(RoundResult) error          { return nil }
func (NopSink) RecordActiveSearches(int) error         { return nil }
