package metrics

import coremetrics "github.com/openroad/roadassist/core/metrics"

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordOfferResults forwards the records to all sinks, returning the
// first error encountered.
func (m *MultiSink) RecordOfferResults(res []coremetrics.OfferResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordOfferResults(res); err != nil {
			return err
		}
	}
	return nil
}

// RecordRound forwards round outcomes to sinks that record them.
func (m *MultiSink) RecordRound(r coremetrics.RoundResult) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.RoundRecorder); ok {
			if err := rec.RecordRound(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordActiveSearches forwards the gauge to sinks that record it.
func (m *MultiSink) RecordActiveSearches(n int) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.SearchGaugeRecorder); ok {
			if err := rec.RecordActiveSearches(n); err != nil {
				return err
			}
		}
	}
	return nil
}
