package types

import "time"

// Metric identifies one of the four hive readings.
type Metric string

const (
	MetricIndoorTemperature  Metric = "indoor_temperature"
	MetricIndoorHumidity     Metric = "indoor_humidity"
	MetricOutdoorTemperature Metric = "outdoor_temperature"
	MetricMass               Metric = "mass"
)

// AllMetrics lists the fixed metrics in schema order.
var AllMetrics = []Metric{
	MetricIndoorTemperature,
	MetricIndoorHumidity,
	MetricOutdoorTemperature,
	MetricMass,
}

// Valid reports whether m is one of the four known metrics.
func (m Metric) Valid() bool {
	switch m {
	case MetricIndoorTemperature, MetricIndoorHumidity, MetricOutdoorTemperature, MetricMass:
		return true
	}
	return false
}

// Date is a calendar date at day granularity, used for window filtering.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf extracts the calendar date from t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool {
	return d.Time().After(other.Time())
}

// String formats the date as ISO YYYY-MM-DD.
func (d Date) String() string {
	return d.Time().Format("2006-01-02")
}

// ParseDate parses an ISO YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// MarshalJSON encodes the date as an ISO string. The persisted column
// representation carries dates as text.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON decodes an ISO date string.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Sample is one atomic multi-field hive observation.
type Sample struct {
	Timestamp          time.Time `json:"timestamp"`
	Date               Date      `json:"date"`
	IndoorTemperature  float64   `json:"indoor_temperature"`
	IndoorHumidity     float64   `json:"indoor_humidity"`
	OutdoorTemperature float64   `json:"outdoor_temperature"`
	Mass               float64   `json:"mass"`
}

// Value returns the sample's reading for the given metric.
func (s Sample) Value(m Metric) float64 {
	switch m {
	case MetricIndoorTemperature:
		return s.IndoorTemperature
	case MetricIndoorHumidity:
		return s.IndoorHumidity
	case MetricOutdoorTemperature:
		return s.OutdoorTemperature
	case MetricMass:
		return s.Mass
	}
	return 0
}

// Complete reports whether all four readings are non-zero. The fetcher
// only hands out complete samples.
func (s Sample) Complete() bool {
	return s.IndoorTemperature != 0 && s.IndoorHumidity != 0 &&
		s.OutdoorTemperature != 0 && s.Mass != 0
}

// Window is an inclusive date range used to filter the series.
type Window struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// Contains reports whether d falls within the window, bounds included.
func (w Window) Contains(d Date) bool {
	return !d.Before(w.Start) && !d.After(w.End)
}

// Selection is the ordered set of metrics chosen for charting.
type Selection []Metric

// Point is one charted (timestamp, value) pair.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// PointSequence is the chronological charted data for one metric.
type PointSequence struct {
	Metric Metric  `json:"metric"`
	Points []Point `json:"points"`
}

// Snapshots holds the latest value of each fixed metric, independent of
// the active window. These drive the instantaneous gauges.
type Snapshots struct {
	IndoorTemperature  float64 `json:"indoor_temperature"`
	IndoorHumidity     float64 `json:"indoor_humidity"`
	OutdoorTemperature float64 `json:"outdoor_temperature"`
	Mass               float64 `json:"mass"`
}

// ProjectionResult is the filtered, per-metric view of the series handed
// to the render sink.
type ProjectionResult struct {
	Window    Window          `json:"window"`
	Sequences []PointSequence `json:"sequences"`
	Snapshots Snapshots       `json:"snapshots"`
}
