package dispatch

import (
	"fmt"
	"time"
)

// Config defines dispatch-related settings.
type Config struct {
	// RadiusKm is the initial search radius of a round.
	RadiusKm float64 `json:"radius_km"`
	// MaxCandidates is how many mechanics receive an offer per round.
	MaxCandidates int `json:"max_candidates"`
	// AckWindowSeconds bounds how long a round waits for an acceptance.
	AckWindowSeconds int `json:"ack_window_seconds"`
	// MaxRetries is how many widened rounds follow the first one.
	MaxRetries int `json:"max_retries"`
	// WidenFactor multiplies the radius after an unmatched round.
	WidenFactor float64 `json:"widen_factor"`
	// RequireSkills restricts candidates to mechanics advertising the
	// breakdown's emergency category as a skill.
	RequireSkills bool `json:"require_skills"`
	// SweepIntervalSeconds is the period of the stuck-search sweeper.
	SweepIntervalSeconds int `json:"sweep_interval_seconds"`
}

// SetDefaults fills unset fields with the system defaults.
func (c *Config) SetDefaults() {
	if c.RadiusKm <= 0 {
		c.RadiusKm = 15
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = 5
	}
	if c.AckWindowSeconds <= 0 {
		c.AckWindowSeconds = 20
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.WidenFactor <= 1 {
		c.WidenFactor = 1.5
	}
	if c.SweepIntervalSeconds <= 0 {
		c.SweepIntervalSeconds = 30
	}
}

// Validate rejects configurations the coordinator cannot run with.
func (c Config) Validate() error {
	if c.RadiusKm <= 0 {
		return fmt.Errorf("radius_km must be positive, got %v", c.RadiusKm)
	}
	if c.WidenFactor <= 1 {
		return fmt.Errorf("widen_factor must exceed 1, got %v", c.WidenFactor)
	}
	return nil
}

// AckWindow returns the acceptance window as a duration.
func (c Config) AckWindow() time.Duration {
	return time.Duration(c.AckWindowSeconds) * time.Second
}

// SweepInterval returns the sweeper period as a duration.
func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}
