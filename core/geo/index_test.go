package geo

import (
	"math"
	"testing"
	"time"
)

// pointAtKm returns a coordinate approximately d kilometers east of the
// given point.
func pointAtKm(lat, lng, d float64) (float64, float64) {
	return lat, lng + d/(111.0*math.Cos(lat*math.Pi/180))
}

func TestHaversine_KnownDistance(t *testing.T) {
	// Paris to Lyon, roughly 392 km.
	d := Haversine(48.8566, 2.3522, 45.7640, 4.8357)
	if d < 380 || d > 405 {
		t.Fatalf("Paris-Lyon distance = %v, want ~392", d)
	}
}

func TestQueryNearby_OrderAndRadius(t *testing.T) {
	ix := NewIndex()
	now := time.Now()
	base := 48.85
	for _, tc := range []struct {
		id string
		d  float64
	}{
		{"m20", 20}, {"m9", 9}, {"m2", 2}, {"m14", 14},
	} {
		lat, lng := pointAtKm(base, 2.35, tc.d)
		ix.Upsert(tc.id, lat, lng, now)
		ix.SetAvailable(tc.id, true)
	}

	got := ix.QueryNearby(Query{Lat: base, Lng: 2.35, RadiusKm: 15})
	want := []string{"m2", "m9", "m14"}
	if len(got) != len(want) {
		t.Fatalf("got %d candidates, want %d: %#v", len(got), len(want), got)
	}
	for i, id := range want {
		if got[i].MechanicID != id {
			t.Errorf("position %d: got %s want %s", i, got[i].MechanicID, id)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i].DistanceKm < got[i-1].DistanceKm {
			t.Errorf("distances not ascending: %#v", got)
		}
	}
}

func TestQueryNearby_TieBrokenByFreshness(t *testing.T) {
	ix := NewIndex()
	lat, lng := pointAtKm(48.85, 2.35, 5)
	old := time.Now().Add(-time.Hour)
	fresh := time.Now()
	ix.Upsert("stale", lat, lng, old)
	ix.Upsert("fresh", lat, lng, fresh)
	ix.SetAvailable("stale", true)
	ix.SetAvailable("fresh", true)

	got := ix.QueryNearby(Query{Lat: 48.85, Lng: 2.35})
	if len(got) != 2 || got[0].MechanicID != "fresh" {
		t.Fatalf("freshest first expected, got %#v", got)
	}
}

func TestQueryNearby_ExcludesUnavailable(t *testing.T) {
	ix := NewIndex()
	now := time.Now()
	ix.Upsert("busy", 48.85, 2.36, now)
	ix.Upsert("online", 48.85, 2.37, now)
	ix.SetAvailable("busy", false)
	ix.SetAvailable("online", true)

	got := ix.QueryNearby(Query{Lat: 48.85, Lng: 2.35})
	if len(got) != 1 || got[0].MechanicID != "online" {
		t.Fatalf("only the available mechanic should match, got %#v", got)
	}
}

func TestQueryNearby_MaxResults(t *testing.T) {
	ix := NewIndex()
	now := time.Now()
	for i, d := range []float64{1, 2, 3, 4, 5} {
		lat, lng := pointAtKm(48.85, 2.35, d)
		id := string(rune('a' + i))
		ix.Upsert(id, lat, lng, now)
		ix.SetAvailable(id, true)
	}
	got := ix.QueryNearby(Query{Lat: 48.85, Lng: 2.35, MaxResults: 2})
	if len(got) != 2 || got[0].MechanicID != "a" || got[1].MechanicID != "b" {
		t.Fatalf("truncation failed: %#v", got)
	}
}

func TestQueryNearby_SkillFilter(t *testing.T) {
	ix := NewIndex()
	now := time.Now()
	ix.Upsert("tires", 48.85, 2.36, now)
	ix.SetAvailable("tires", true)
	ix.SetSkills("tires", []string{"FLAT_TIRE"})
	ix.Upsert("engines", 48.85, 2.37, now)
	ix.SetAvailable("engines", true)
	ix.SetSkills("engines", []string{"ENGINE"})

	got := ix.QueryNearby(Query{Lat: 48.85, Lng: 2.35, RequiredSkills: []string{"ENGINE"}})
	if len(got) != 1 || got[0].MechanicID != "engines" {
		t.Fatalf("skill filter failed: %#v", got)
	}
}

func TestUpsert_MovesBetweenCells(t *testing.T) {
	ix := NewIndex()
	now := time.Now()
	ix.Upsert("m", 48.85, 2.35, now)
	ix.SetAvailable("m", true)
	// Move far away, out of the original cell ring.
	ix.Upsert("m", 45.76, 4.83, now)

	if got := ix.QueryNearby(Query{Lat: 48.85, Lng: 2.35}); len(got) != 0 {
		t.Fatalf("stale cell entry returned: %#v", got)
	}
	if got := ix.QueryNearby(Query{Lat: 45.76, Lng: 4.83}); len(got) != 1 {
		t.Fatalf("moved entry not found: %#v", got)
	}
}

func TestRemove(t *testing.T) {
	ix := NewIndex()
	ix.Upsert("m", 48.85, 2.35, time.Now())
	ix.SetAvailable("m", true)
	ix.Remove("m")
	if got := ix.QueryNearby(Query{Lat: 48.85, Lng: 2.35}); len(got) != 0 {
		t.Fatalf("removed entry returned: %#v", got)
	}
}
