// Package export renders dispatch audit records for back-office tooling that
// wants files instead of JSON APIs.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/openroad/roadassist/core/dispatch/logging"
)

// WriteJSON writes the records to w as a JSON array.
func WriteJSON(w io.Writer, records []logging.RoundRecord) error {
	if records == nil {
		records = []logging.RoundRecord{}
	}
	enc := json.NewEncoder(w)
	return enc.Encode(records)
}

// WriteCSV writes the records to w with one row per dispatch round. The
// offered column is "mechanicID:distanceKm" pairs separated by spaces.
func WriteCSV(w io.Writer, records []logging.RoundRecord) error {
	cw := csv.NewWriter(w)
	header := []string{"timestamp", "breakdown_id", "number", "attempt", "radius_km", "offered", "accepted_by", "outcome", "error"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Timestamp.UTC().Format(time.RFC3339),
			r.BreakdownID,
			r.Number,
			strconv.Itoa(r.Attempt),
			strconv.FormatFloat(r.RadiusKm, 'f', 2, 64),
			offeredColumn(r.Offered),
			r.AcceptedBy,
			r.Outcome,
			r.Error,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// offeredColumn renders the offer map deterministically, sorted by id.
func offeredColumn(offered map[string]float64) string {
	ids := make([]string, 0, len(offered))
	for id := range offered {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id + ":" + strconv.FormatFloat(offered[id], 'f', 2, 64)
	}
	return strings.Join(parts, " ")
}
