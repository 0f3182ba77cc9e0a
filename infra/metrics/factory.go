package metrics

import (
	"fmt"

	coremetrics "github.com/openroad/roadassist/core/metrics"
)

// NewSink builds a MetricsSink from the configuration. Multiple configured
// sinks are combined into a MultiSink; none yields a NopSink.
func NewSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	if len(cfg.Sinks) == 0 {
		return coremetrics.NopSink{}, nil
	}
	sinks := make([]coremetrics.MetricsSink, 0, len(cfg.Sinks))
	for _, sc := range cfg.Sinks {
		switch sc.Type {
		case "nop", "":
			sinks = append(sinks, coremetrics.NopSink{})
		case "prometheus":
			s, err := NewPromSink()
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, s)
		case "influx":
			sinks = append(sinks, NewInfluxSinkWithFallback(sc.URL, sc.Token, sc.Org, sc.Bucket))
		default:
			return nil, fmt.Errorf("unknown metrics sink type %q", sc.Type)
		}
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return NewMultiSink(sinks...), nil
}
