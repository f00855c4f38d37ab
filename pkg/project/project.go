package project

import (
	"errors"

	"github.com/antoine-zurcher/dashboard-ruche-connectee-mollens/pkg/series"
	"github.com/antoine-zurcher/dashboard-ruche-connectee-mollens/pkg/types"
)

// ErrEmptySeries is returned when a latest-value snapshot is requested on
// an empty series. The gauges always need a current value; callers supply
// a sentinel instead of rendering nothing.
var ErrEmptySeries = errors.New("cannot take snapshots of an empty series")

// Project filters s by the window and emits one chronological point
// sequence per selected metric, plus the four latest-value snapshots
// taken from the last row of the full, unfiltered series.
//
// Projection is pure: the same series, window and selection always yield
// the same result, so a selection or window change never needs a refetch.
func Project(s series.Series, w types.Window, sel types.Selection) (types.ProjectionResult, error) {
	latest, ok := s.Latest()
	if !ok {
		return types.ProjectionResult{}, ErrEmptySeries
	}

	result := types.ProjectionResult{
		Window: w,
		Snapshots: types.Snapshots{
			IndoorTemperature:  latest.IndoorTemperature,
			IndoorHumidity:     latest.IndoorHumidity,
			OutdoorTemperature: latest.OutdoorTemperature,
			Mass:               latest.Mass,
		},
	}

	var filtered []types.Sample
	for _, row := range s.Rows() {
		if w.Contains(row.Date) {
			filtered = append(filtered, row)
		}
	}

	seen := make(map[types.Metric]bool, len(sel))
	for _, m := range sel {
		if !m.Valid() || seen[m] {
			continue
		}
		seen[m] = true
		seq := types.PointSequence{Metric: m, Points: make([]types.Point, 0, len(filtered))}
		for _, row := range filtered {
			seq.Points = append(seq.Points, types.Point{Timestamp: row.Timestamp, Value: row.Value(m)})
		}
		result.Sequences = append(result.Sequences, seq)
	}

	return result, nil
}
