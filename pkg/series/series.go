package series

import (
	"errors"
	"time"

	"github.com/antoine-zurcher/dashboard-ruche-connectee-mollens/pkg/types"
)

// ErrSchemaMismatch indicates the persisted columns did not match the
// fixed schema. Load still returns a usable empty series alongside it.
var ErrSchemaMismatch = errors.New("persisted series does not match schema")

// Series is the append-only, time-ordered collection of samples.
// The zero value is an empty, ready-to-use series.
type Series struct {
	rows []types.Sample
}

// New returns an empty series with the fixed schema.
func New() Series {
	return Series{}
}

// Append returns a new series extended with smp. The receiver's rows are
// never touched; callers holding the old value keep seeing the old rows.
func Append(s Series, smp types.Sample) Series {
	rows := make([]types.Sample, len(s.rows), len(s.rows)+1)
	copy(rows, s.rows)
	return Series{rows: append(rows, smp)}
}

// Len returns the number of samples.
func (s Series) Len() int {
	return len(s.rows)
}

// At returns the i-th sample in insertion order.
func (s Series) At(i int) types.Sample {
	return s.rows[i]
}

// Rows returns the underlying samples in insertion order. Callers must
// treat the slice as read-only.
func (s Series) Rows() []types.Sample {
	return s.rows
}

// Latest returns the most recent sample, ok=false on an empty series.
func (s Series) Latest() (types.Sample, bool) {
	if len(s.rows) == 0 {
		return types.Sample{}, false
	}
	return s.rows[len(s.rows)-1], true
}

// Columns is the column-oriented persisted representation of a series.
// Dates travel as ISO text; Load re-types them before any filtering.
type Columns struct {
	Timestamps          []time.Time `json:"timestamp"`
	Dates               []string    `json:"date"`
	IndoorTemperatures  []float64   `json:"indoor_temperature"`
	IndoorHumidities    []float64   `json:"indoor_humidity"`
	OutdoorTemperatures []float64   `json:"outdoor_temperature"`
	Masses              []float64   `json:"mass"`
}

// Columns converts the series to its persisted representation.
func (s Series) Columns() Columns {
	n := len(s.rows)
	c := Columns{
		Timestamps:          make([]time.Time, n),
		Dates:               make([]string, n),
		IndoorTemperatures:  make([]float64, n),
		IndoorHumidities:    make([]float64, n),
		OutdoorTemperatures: make([]float64, n),
		Masses:              make([]float64, n),
	}
	for i, r := range s.rows {
		c.Timestamps[i] = r.Timestamp
		c.Dates[i] = r.Date.String()
		c.IndoorTemperatures[i] = r.IndoorTemperature
		c.IndoorHumidities[i] = r.IndoorHumidity
		c.OutdoorTemperatures[i] = r.OutdoorTemperature
		c.Masses[i] = r.Mass
	}
	return c
}

// Load reconstructs a series from its persisted columns, parsing the date
// column into calendar dates. Empty columns yield an empty series and no
// error. Ragged columns or unparsable dates degrade to an empty series
// with ErrSchemaMismatch; the returned series is always usable.
func Load(c Columns) (Series, error) {
	n := len(c.Timestamps)
	if n == 0 && len(c.Dates) == 0 && len(c.IndoorTemperatures) == 0 &&
		len(c.IndoorHumidities) == 0 && len(c.OutdoorTemperatures) == 0 && len(c.Masses) == 0 {
		return Series{}, nil
	}
	if len(c.Dates) != n || len(c.IndoorTemperatures) != n ||
		len(c.IndoorHumidities) != n || len(c.OutdoorTemperatures) != n || len(c.Masses) != n {
		return Series{}, ErrSchemaMismatch
	}

	rows := make([]types.Sample, n)
	for i := 0; i < n; i++ {
		date, err := types.ParseDate(c.Dates[i])
		if err != nil {
			return Series{}, ErrSchemaMismatch
		}
		rows[i] = types.Sample{
			Timestamp:          c.Timestamps[i],
			Date:               date,
			IndoorTemperature:  c.IndoorTemperatures[i],
			IndoorHumidity:     c.IndoorHumidities[i],
			OutdoorTemperature: c.OutdoorTemperatures[i],
			Mass:               c.Masses[i],
		}
	}
	return Series{rows: rows}, nil
}
