package main

import (
	"fmt"
	"time"
)

// Config drives a simulated mechanic fleet.
type Config struct {
	Broker      string
	APIBaseURL  string
	AdminToken  string
	Count       int
	AcceptRate  float64
	ReplyDelay  time.Duration
	MoveKmH     float64
	PingEvery   time.Duration
	CenterLat   float64
	CenterLng   float64
	SpreadKm    float64
	Skills     []string
	Verbose    bool
}

// Validate checks flag combinations before the fleet starts.
func (c *Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("broker is required")
	}
	if c.Count <= 0 {
		return fmt.Errorf("count must be positive")
	}
	if c.AcceptRate < 0 || c.AcceptRate > 1 {
		return fmt.Errorf("accept-rate must be within [0,1]")
	}
	if c.SpreadKm < 0 {
		return fmt.Errorf("spread must not be negative")
	}
	if c.APIBaseURL != "" && c.AdminToken == "" {
		return fmt.Errorf("api registration needs -token")
	}
	return nil
}
