package config

import (
	"fmt"
)

// LoggingConfig defines dispatch audit trail storage.
type LoggingConfig struct {
	// Backend selects the store type: "jsonl", "sqlite" or "nop".
	Backend string `json:"backend"`
	// Path is the file location of the store. Ignored for "nop".
	Path string `json:"path"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" && c.Backend != "nop" {
		c.Path = "dispatch.log"
	}
}

// Validate checks mandatory fields.
func (c LoggingConfig) Validate() error {
	switch c.Backend {
	case "jsonl", "sqlite":
		if c.Path == "" {
			return fmt.Errorf("path is required")
		}
	case "nop":
	default:
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	return nil
}
