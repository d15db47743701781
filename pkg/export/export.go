// Package export renders schedule listings for offline analysis.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/kilianp07/soh/core/model"
)

// Formats accepted by Write.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Write renders views to w in format.
func Write(w io.Writer, format string, views []model.ScheduleView) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, views)
	case FormatCSV:
		return WriteCSV(w, views)
	}
	return errors.Newf("unsupported export format %q", format)
}

// WriteJSON writes views to w as a JSON array.
func WriteJSON(w io.Writer, views []model.ScheduleView) error {
	if views == nil {
		views = []model.ScheduleView{}
	}
	return json.NewEncoder(w).Encode(views)
}

// WriteCSV writes views to w with one header row. Absent SoH and end times
// are written as empty fields.
func WriteCSV(w io.Writer, views []model.ScheduleView) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "str_id", "current", "state", "soh", "start_time", "end_time"}); err != nil {
		return err
	}
	for _, v := range views {
		var soh, end string
		if v.SoH != nil {
			soh = strconv.FormatFloat(*v.SoH, 'f', -1, 64)
		}
		if v.EndTime != nil {
			end = v.EndTime.Format(time.RFC3339)
		}
		rec := []string{
			strconv.FormatInt(v.ID, 10),
			v.StringID,
			strconv.FormatFloat(v.Current, 'f', -1, 64),
			v.State,
			soh,
			v.StartTime.Format(time.RFC3339),
			end,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
