// Package geo tracks mechanic positions and answers proximity queries for
// the dispatch coordinator.
package geo

import (
	"math"
	"sort"
	"sync"
	"time"
)

// DefaultRadiusKm is the search radius applied when a query leaves it unset.
const DefaultRadiusKm = 15.0

// cellSizeDeg is the side of a grid bucket in degrees. 0.25 degrees is
// roughly 28 km of latitude, sized so a default-radius query touches at
// most a 3x3 ring of cells.
const cellSizeDeg = 0.25

const earthRadiusKm = 6371.0

// Query describes a proximity lookup.
type Query struct {
	Lat            float64
	Lng            float64
	RadiusKm       float64
	MaxResults     int
	RequiredSkills []string
}

// Candidate is a mechanic eligible to receive an offer, with its
// great-circle distance from the query point.
type Candidate struct {
	MechanicID string    `json:"mechanic_id"`
	DistanceKm float64   `json:"distance_km"`
	ObservedAt time.Time `json:"observed_at"`
}

type entry struct {
	id         string
	lat        float64
	lng        float64
	observedAt time.Time
	available  bool
	skills     map[string]struct{}
}

type cellKey struct {
	latCell int
	lngCell int
}

// Index is an in-memory geospatial index partitioned into grid buckets so a
// query only scans the cells overlapping its radius. The contract does not
// expose the bucketing; a different partitioning can replace it without
// touching callers.
type Index struct {
	mu      sync.RWMutex
	entries map[string]*entry
	cells   map[cellKey]map[string]*entry
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		entries: make(map[string]*entry),
		cells:   make(map[cellKey]map[string]*entry),
	}
}

func cellOf(lat, lng float64) cellKey {
	return cellKey{
		latCell: int(math.Floor(lat / cellSizeDeg)),
		lngCell: int(math.Floor(lng / cellSizeDeg)),
	}
}

// Upsert replaces a mechanic's last-known position. Availability and skills
// survive position updates.
func (ix *Index) Upsert(mechanicID string, lat, lng float64, observedAt time.Time) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	e, ok := ix.entries[mechanicID]
	if !ok {
		e = &entry{id: mechanicID}
		ix.entries[mechanicID] = e
	} else {
		ix.detach(e)
	}
	e.lat, e.lng, e.observedAt = lat, lng, observedAt
	ix.attach(e)
}

// SetAvailable toggles query eligibility without discarding the position.
func (ix *Index) SetAvailable(mechanicID string, available bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if e, ok := ix.entries[mechanicID]; ok {
		e.available = available
	}
}

// SetSkills replaces the advertised skill set used by skill-filtered queries.
func (ix *Index) SetSkills(mechanicID string, skills []string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	e, ok := ix.entries[mechanicID]
	if !ok {
		return
	}
	e.skills = make(map[string]struct{}, len(skills))
	for _, s := range skills {
		e.skills[s] = struct{}{}
	}
}

// Remove deletes the mechanic from the index entirely.
func (ix *Index) Remove(mechanicID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if e, ok := ix.entries[mechanicID]; ok {
		ix.detach(e)
		delete(ix.entries, mechanicID)
	}
}

func (ix *Index) attach(e *entry) {
	k := cellOf(e.lat, e.lng)
	c, ok := ix.cells[k]
	if !ok {
		c = make(map[string]*entry)
		ix.cells[k] = c
	}
	c[e.id] = e
}

func (ix *Index) detach(e *entry) {
	k := cellOf(e.lat, e.lng)
	if c, ok := ix.cells[k]; ok {
		delete(c, e.id)
		if len(c) == 0 {
			delete(ix.cells, k)
		}
	}
}

// QueryNearby returns available mechanics within the radius, ordered by
// ascending distance, ties broken by the freshest position report. The
// result is truncated to MaxResults when positive.
func (ix *Index) QueryNearby(q Query) []Candidate {
	radius := q.RadiusKm
	if radius <= 0 {
		radius = DefaultRadiusKm
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var out []Candidate
	for _, k := range coveringCells(q.Lat, q.Lng, radius) {
		for _, e := range ix.cells[k] {
			if !e.available {
				continue
			}
			if !hasAll(e.skills, q.RequiredSkills) {
				continue
			}
			d := Haversine(q.Lat, q.Lng, e.lat, e.lng)
			if d > radius {
				continue
			}
			out = append(out, Candidate{MechanicID: e.id, DistanceKm: d, ObservedAt: e.observedAt})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].ObservedAt.After(out[j].ObservedAt)
	})
	if q.MaxResults > 0 && len(out) > q.MaxResults {
		out = out[:q.MaxResults]
	}
	return out
}

// coveringCells returns the keys of every grid cell intersecting the
// radius around the point.
func coveringCells(lat, lng, radiusKm float64) []cellKey {
	latDelta := radiusKm / 111.0
	cos := math.Cos(lat * math.Pi / 180)
	lngDelta := latDelta
	if cos > 0.01 {
		lngDelta = radiusKm / (111.0 * cos)
	}

	minLat := int(math.Floor((lat - latDelta) / cellSizeDeg))
	maxLat := int(math.Floor((lat + latDelta) / cellSizeDeg))
	minLng := int(math.Floor((lng - lngDelta) / cellSizeDeg))
	maxLng := int(math.Floor((lng + lngDelta) / cellSizeDeg))

	keys := make([]cellKey, 0, (maxLat-minLat+1)*(maxLng-minLng+1))
	for la := minLat; la <= maxLat; la++ {
		for lo := minLng; lo <= maxLng; lo++ {
			keys = append(keys, cellKey{latCell: la, lngCell: lo})
		}
	}
	return keys
}

func hasAll(skills map[string]struct{}, required []string) bool {
	for _, r := range required {
		if _, ok := skills[r]; !ok {
			return false
		}
	}
	return true
}

// Haversine returns the great-circle distance in kilometers between two
// points on a spherical Earth approximation.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	const deg = math.Pi / 180
	dLat := (lat2 - lat1) * deg
	dLng := (lng2 - lng1) * deg
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*deg)*math.Cos(lat2*deg)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
