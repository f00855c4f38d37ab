package window

import (
	"fmt"

	"github.com/antoine-zurcher/dashboard-ruche-connectee-mollens/pkg/types"
)

// Timeframe names a preset lookback relative to today.
type Timeframe string

const (
	TimeframeDay   Timeframe = "day"
	TimeframeWeek  Timeframe = "week"
	TimeframeMonth Timeframe = "month"
)

// ErrBadDate indicates a malformed explicit date bound.
var ErrBadDate = fmt.Errorf("malformed date, expected YYYY-MM-DD")

// ErrUnknownTimeframe indicates an unrecognized preset name.
var ErrUnknownTimeframe = fmt.Errorf("unknown timeframe")

// Resolve maps a named timeframe to an inclusive date window ending
// today. "month" is a fixed 30-day lookback, not a calendar month.
func Resolve(tf Timeframe, today types.Date) (types.Window, error) {
	switch tf {
	case TimeframeDay:
		return types.Window{Start: today, End: today}, nil
	case TimeframeWeek:
		return types.Window{Start: today.AddDays(-7), End: today}, nil
	case TimeframeMonth:
		return types.Window{Start: today.AddDays(-30), End: today}, nil
	}
	return types.Window{}, fmt.Errorf("%w: %q", ErrUnknownTimeframe, tf)
}

// ResolveExplicit parses two ISO date strings into an inclusive window.
func ResolveExplicit(start, end string) (types.Window, error) {
	s, err := types.ParseDate(start)
	if err != nil {
		return types.Window{}, fmt.Errorf("%w: start %q", ErrBadDate, start)
	}
	e, err := types.ParseDate(end)
	if err != nil {
		return types.Window{}, fmt.Errorf("%w: end %q", ErrBadDate, end)
	}
	return types.Window{Start: s, End: e}, nil
}
