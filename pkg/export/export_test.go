package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openroad/roadassist/core/dispatch/logging"
)

func sample() []logging.RoundRecord {
	return []logging.RoundRecord{
		{
			Timestamp:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
			BreakdownID: "b-1",
			Number:      "BRK-000001",
			Attempt:     1,
			RadiusKm:    22.5,
			Offered:     map[string]float64{"m-2": 18, "m-1": 2.5},
			AcceptedBy:  "m-2",
			Outcome:     "matched",
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "timestamp", rows[0][0])
	assert.Equal(t, "BRK-000001", rows[1][2])
	assert.Equal(t, "m-1:2.50 m-2:18.00", rows[1][5], "offers sorted by mechanic id")
	assert.Equal(t, "matched", rows[1][7])
}

func TestWriteJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, nil))
	assert.Equal(t, "[]", strings.TrimSpace(buf.String()))
}
