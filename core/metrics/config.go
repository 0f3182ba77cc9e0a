package metrics

// SinkConfig selects and parameterizes one metrics sink.
// Type is "nop", "prometheus" or "influx".
type SinkConfig struct {
	Type   string `json:"type"`
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []SinkConfig `json:"sinks"`
}
