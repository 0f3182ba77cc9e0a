package model

import (
	"fmt"
	"time"
)

// MechanicStatus is the availability state of a mechanic.
type MechanicStatus string

const (
	MechanicOnline  MechanicStatus = "ONLINE"
	MechanicOffline MechanicStatus = "OFFLINE"
	MechanicBusy    MechanicStatus = "BUSY"
)

// ParseMechanicStatus validates a wire value against the known statuses.
func ParseMechanicStatus(v string) (MechanicStatus, error) {
	switch s := MechanicStatus(v); s {
	case MechanicOnline, MechanicOffline, MechanicBusy:
		return s, nil
	}
	return "", fmt.Errorf("unknown mechanic status %q", v)
}

// Mechanic represents a mechanic known to the dispatch engine.
//
// A mechanic is BUSY exactly while it is the assigned mechanic of one
// non-terminal breakdown. IsOnline is derived and always consistent with
// Status == ONLINE.
type Mechanic struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	Name       string         `json:"name"`
	Phone      string         `json:"phone,omitempty"`
	Latitude   float64        `json:"latitude"`
	Longitude  float64        `json:"longitude"`
	ObservedAt time.Time      `json:"observed_at"`
	Status     MechanicStatus `json:"status"`
	IsOnline   bool           `json:"is_online"`
	Verified   bool           `json:"verified"`
	Skills     []string       `json:"skills,omitempty"`
	Rating     float64        `json:"rating,omitempty"`
}

// HasSkill reports whether the mechanic advertises the given skill.
func (m Mechanic) HasSkill(skill string) bool {
	for _, s := range m.Skills {
		if s == skill {
			return true
		}
	}
	return false
}
