// Package pricing estimates the cost of a roadside intervention from the
// travel distance and the emergency category. The engine sits behind an
// interface so a learned or remote pricer can replace the table later.
package pricing

import (
	"math"

	"github.com/openroad/roadassist/core/model"
)

// Estimator produces a price estimate for a breakdown.
type Estimator interface {
	Estimate(distanceKm float64, category model.EmergencyCategory) float64
}

// TableEstimator is the deterministic default: a call-out base fee, a
// per-kilometer travel charge, and a flat surcharge per category.
type TableEstimator struct {
	BaseFee   float64
	PerKm     float64
	Surcharge map[model.EmergencyCategory]float64
}

// NewTableEstimator returns an estimator with the default fee table.
func NewTableEstimator() *TableEstimator {
	return &TableEstimator{
		BaseFee: 35,
		PerKm:   1.8,
		Surcharge: map[model.EmergencyCategory]float64{
			model.CategoryFlatTire:    15,
			model.CategoryDeadBattery: 20,
			model.CategoryEngine:      60,
			model.CategoryLockout:     25,
			model.CategoryFuel:        10,
			model.CategoryAccident:    80,
			model.CategoryOther:       20,
		},
	}
}

// Estimate returns the quote rounded to cents. Negative distances count
// as zero.
func (e *TableEstimator) Estimate(distanceKm float64, category model.EmergencyCategory) float64 {
	if distanceKm < 0 {
		distanceKm = 0
	}
	v := e.BaseFee + e.PerKm*distanceKm + e.Surcharge[category]
	return math.Round(v*100) / 100
}
