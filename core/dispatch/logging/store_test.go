package logging

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sampleRecords(base time.Time) []RoundRecord {
	return []RoundRecord{
		{
			Timestamp: base, BreakdownID: "b1", Number: "BRK-000001",
			Attempt: 0, RadiusKm: 15,
			Offered: map[string]float64{"m1": 2.1, "m2": 8.9},
			Outcome: "widened",
		},
		{
			Timestamp: base.Add(time.Minute), BreakdownID: "b1",
			Attempt: 1, RadiusKm: 22.5,
			Offered:    map[string]float64{"m3": 17.0},
			AcceptedBy: "m3", Outcome: "matched",
		},
		{
			Timestamp: base.Add(2 * time.Minute), BreakdownID: "b2",
			Attempt: 0, RadiusKm: 15, Outcome: "exhausted",
		},
	}
}

func runStoreTests(t *testing.T, store LogStore) {
	t.Helper()
	ctx := context.Background()
	base := time.Now().Truncate(time.Second)
	for _, r := range sampleRecords(base) {
		require.NoError(t, store.Append(ctx, r))
	}

	all, err := store.Query(ctx, LogQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	byBreakdown, err := store.Query(ctx, LogQuery{BreakdownID: "b1"})
	require.NoError(t, err)
	require.Len(t, byBreakdown, 2)

	byOutcome, err := store.Query(ctx, LogQuery{Outcome: "matched"})
	require.NoError(t, err)
	require.Len(t, byOutcome, 1)
	require.Equal(t, "m3", byOutcome[0].AcceptedBy)

	byMechanic, err := store.Query(ctx, LogQuery{MechanicID: "m2"})
	require.NoError(t, err)
	require.Len(t, byMechanic, 1)
	require.Equal(t, 0, byMechanic[0].Attempt)

	windowed, err := store.Query(ctx, LogQuery{Start: base.Add(90 * time.Second)})
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	require.Equal(t, "b2", windowed[0].BreakdownID)
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "rounds.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	runStoreTests(t, store)
}

func TestJSONLStore(t *testing.T) {
	store, err := NewJSONLStore(filepath.Join(t.TempDir(), "rounds.jsonl"))
	require.NoError(t, err)
	runStoreTests(t, store)
}
