// Package scenarios runs YAML-described dispatch scenarios against the
// coordinator. QA can describe a fleet, a breakdown and the expected
// outcome without writing Go.
package scenarios

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openroad/roadassist/core/dispatch"
	"github.com/openroad/roadassist/core/model"
)

// MechanicDef describes one simulated mechanic and how it answers offers.
type MechanicDef struct {
	ID       string   `yaml:"id"`
	Lat      float64  `yaml:"lat"`
	Lng      float64  `yaml:"lng"`
	Skills   []string `yaml:"skills,omitempty"`
	Status   string   `yaml:"status,omitempty"` // default ONLINE
	Accept   bool     `yaml:"accept"`
	DelayMS  int      `yaml:"delay_ms,omitempty"`
	IgnoreIt bool     `yaml:"ignore,omitempty"` // never answers, lets the offer expire
}

func (m MechanicDef) ToModel() (model.Mechanic, error) {
	status := model.MechanicOnline
	if m.Status != "" {
		var err error
		status, err = model.ParseMechanicStatus(m.Status)
		if err != nil {
			return model.Mechanic{}, err
		}
	}
	return model.Mechanic{
		ID:        m.ID,
		Name:      m.ID,
		Latitude:  m.Lat,
		Longitude: m.Lng,
		Skills:    m.Skills,
		Status:    status,
		Verified:  true,
	}, nil
}

func (m MechanicDef) Delay() time.Duration {
	return time.Duration(m.DelayMS) * time.Millisecond
}

// BreakdownDef describes the rider request under test.
type BreakdownDef struct {
	RiderID  string  `yaml:"rider_id"`
	Lat      float64 `yaml:"lat"`
	Lng      float64 `yaml:"lng"`
	Category string  `yaml:"category"`
	Address  string  `yaml:"address,omitempty"`
}

// Expected is the terminal assertion of a scenario.
type Expected struct {
	Status       string `yaml:"status"`
	AssignedTo   string `yaml:"assigned_to,omitempty"`
	CancelReason string `yaml:"cancel_reason,omitempty"`
	MinRounds    int    `yaml:"min_rounds,omitempty"`
}

// Scenario is one QA case.
type Scenario struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description,omitempty"`
	Dispatch    dispatch.Config `yaml:"-"`
	RawDispatch dispatchDef     `yaml:"dispatch"`
	Mechanics   []MechanicDef   `yaml:"mechanics"`
	Breakdown   BreakdownDef    `yaml:"breakdown"`
	Expected    Expected        `yaml:"expected"`
}

type dispatchDef struct {
	RadiusKm         float64 `yaml:"radius_km,omitempty"`
	MaxCandidates    int     `yaml:"max_candidates,omitempty"`
	AckWindowSeconds int     `yaml:"ack_window_seconds,omitempty"`
	MaxRetries       int     `yaml:"max_retries,omitempty"`
	WidenFactor      float64 `yaml:"widen_factor,omitempty"`
	RequireSkills    bool    `yaml:"require_skills,omitempty"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("%s: scenario name is required", path)
	}
	if _, err := model.ParseEmergencyCategory(sc.Breakdown.Category); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if _, err := model.ParseBreakdownStatus(sc.Expected.Status); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	sc.Dispatch = dispatch.Config{
		RadiusKm:         sc.RawDispatch.RadiusKm,
		MaxCandidates:    sc.RawDispatch.MaxCandidates,
		AckWindowSeconds: sc.RawDispatch.AckWindowSeconds,
		MaxRetries:       sc.RawDispatch.MaxRetries,
		WidenFactor:      sc.RawDispatch.WidenFactor,
		RequireSkills:    sc.RawDispatch.RequireSkills,
	}
	if sc.Dispatch.AckWindowSeconds == 0 {
		// Keep QA runs fast unless a scenario demands otherwise.
		sc.Dispatch.AckWindowSeconds = 1
	}
	return &sc, nil
}
