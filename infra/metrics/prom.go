package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/openroad/roadassist/core/metrics"
)

// PromSink records dispatch events in Prometheus metrics.
type PromSink struct {
	offers   *prometheus.CounterVec
	rounds   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	searches prometheus.Gauge
}

// NewPromSink registers dispatch metrics on the default Prometheus
// registerer. The /metrics endpoint is served by the HTTP API.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	offers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_offers_total",
		Help: "Total number of offers delivered to mechanics",
	}, []string{"category", "accepted"})
	rounds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_rounds_total",
		Help: "Total number of dispatch rounds by outcome",
	}, []string{"outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_offer_latency_seconds",
		Help:    "Time between offer delivery and mechanic response",
		Buckets: prometheus.DefBuckets,
	}, []string{"accepted"})
	searches := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dispatch_active_searches",
		Help: "Number of breakdowns currently in SEARCHING",
	})

	if err := register(reg, offers, func(c prometheus.Collector) { offers = c.(*prometheus.CounterVec) }); err != nil {
		return nil, err
	}
	if err := register(reg, rounds, func(c prometheus.Collector) { rounds = c.(*prometheus.CounterVec) }); err != nil {
		return nil, err
	}
	if err := register(reg, latency, func(c prometheus.Collector) { latency = c.(*prometheus.HistogramVec) }); err != nil {
		return nil, err
	}
	if err := register(reg, searches, func(c prometheus.Collector) { searches = c.(prometheus.Gauge) }); err != nil {
		return nil, err
	}
	return &PromSink{offers: offers, rounds: rounds, latency: latency, searches: searches}, nil
}

func register(reg prometheus.Registerer, c prometheus.Collector, replace func(prometheus.Collector)) error {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			replace(are.ExistingCollector)
			return nil
		}
		return err
	}
	return nil
}

// RecordOfferResults increments counters and observes response latency.
func (s *PromSink) RecordOfferResults(res []coremetrics.OfferResult) error {
	for _, r := range res {
		acked := strconv.FormatBool(r.Accepted)
		s.offers.WithLabelValues(string(r.Category), acked).Inc()
		s.latency.WithLabelValues(acked).Observe(r.Latency.Seconds())
	}
	return nil
}

// RecordRound counts round outcomes.
func (s *PromSink) RecordRound(r coremetrics.RoundResult) error {
	s.rounds.WithLabelValues(r.Outcome).Inc()
	return nil
}

// RecordActiveSearches sets the gauge of breakdowns in SEARCHING.
func (s *PromSink) RecordActiveSearches(n int) error {
	s.searches.Set(float64(n))
	return nil
}
