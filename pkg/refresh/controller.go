package refresh

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/antoine-zurcher/dashboard-ruche-connectee-mollens/pkg/project"
	"github.com/antoine-zurcher/dashboard-ruche-connectee-mollens/pkg/series"
	"github.com/antoine-zurcher/dashboard-ruche-connectee-mollens/pkg/storage"
	"github.com/antoine-zurcher/dashboard-ruche-connectee-mollens/pkg/types"
	"github.com/antoine-zurcher/dashboard-ruche-connectee-mollens/pkg/window"
)

// TriggerKind identifies one of the five refresh triggers.
type TriggerKind string

const (
	// TriggerTimer is the periodic poll: fetch, append, persist, project.
	TriggerTimer TriggerKind = "timer"
	// TriggerManualRefresh fetches and appends without persisting.
	TriggerManualRefresh TriggerKind = "manual_refresh"
	// TriggerSelection re-projects with a new metric selection.
	TriggerSelection TriggerKind = "selection"
	// TriggerTimeframe re-projects with a named timeframe window.
	TriggerTimeframe TriggerKind = "timeframe"
	// TriggerRange re-projects with an explicit date range.
	TriggerRange TriggerKind = "range"
)

// Trigger carries one trigger identity and its parameters.
type Trigger struct {
	Kind       TriggerKind      `json:"kind"`
	Selection  types.Selection  `json:"selection,omitempty"`
	Timeframe  window.Timeframe `json:"timeframe,omitempty"`
	RangeStart string           `json:"range_start,omitempty"`
	RangeEnd   string           `json:"range_end,omitempty"`
}

// Output is one completed action's render payload.
type Output struct {
	Projection types.ProjectionResult `json:"projection"`
	Selection  types.Selection        `json:"selection"`
	// Persisted reports whether this action wrote the series to storage.
	Persisted bool `json:"persisted"`
}

// Fetcher retrieves one complete sample.
type Fetcher interface {
	Fetch(ctx context.Context) (types.Sample, error)
}

// Publisher fans out appended samples, e.g. over MQTT.
type Publisher interface {
	PublishSample(sample types.Sample)
}

// Sink receives every completed action's output for display.
type Sink interface {
	Render(out *Output)
}

// ErrUnknownTrigger indicates a trigger kind outside the action table.
var ErrUnknownTrigger = errors.New("unknown trigger kind")

// ErrUnknownMetric indicates a selection naming a metric outside the
// fixed schema.
var ErrUnknownMetric = errors.New("unknown metric")

// Unset snapshot defaults shown before the first sample arrives.
var defaultSnapshots = types.Snapshots{
	IndoorTemperature:  20.0,
	IndoorHumidity:     50,
	OutdoorTemperature: 20.0,
	Mass:               50,
}

// Config holds controller configuration.
type Config struct {
	// DefaultTimeframe is the window preset applied at startup.
	DefaultTimeframe window.Timeframe
	// DefaultSelection is the metric set charted at startup.
	DefaultSelection types.Selection
	// CacheSize bounds the projection cache.
	CacheSize int
}

// DefaultConfig returns default controller configuration.
func DefaultConfig() Config {
	return Config{
		DefaultTimeframe: window.TimeframeDay,
		DefaultSelection: types.Selection{types.MetricIndoorTemperature},
		CacheSize:        32,
	}
}

// Controller is the refresh state machine. It owns the canonical series
// and the active window/selection, and is the only writer of all three.
// Actions are serialized: one trigger runs to completion before the next.
type Controller struct {
	mu        sync.Mutex
	fetcher   Fetcher
	backend   storage.Backend
	sampleLog *storage.SampleLog
	publisher Publisher
	sinks     []Sink
	cache     *projectionCache
	now       func() time.Time

	series series.Series
	win    types.Window
	sel    types.Selection
	last   *Output
}

// New creates a controller over the given collaborators. backend is
// required; sampleLog and publisher may be nil.
func New(cfg Config, fetcher Fetcher, backend storage.Backend) *Controller {
	if cfg.CacheSize < 1 {
		cfg.CacheSize = DefaultConfig().CacheSize
	}
	if cfg.DefaultTimeframe == "" {
		cfg.DefaultTimeframe = window.TimeframeDay
	}
	if len(cfg.DefaultSelection) == 0 {
		cfg.DefaultSelection = DefaultConfig().DefaultSelection
	}

	c := &Controller{
		fetcher: fetcher,
		backend: backend,
		cache:   newProjectionCache(cfg.CacheSize),
		now:     time.Now,
		sel:     cfg.DefaultSelection,
	}

	// DefaultTimeframe is one of the fixed presets, so Resolve cannot fail.
	c.win, _ = window.Resolve(cfg.DefaultTimeframe, types.DateOf(c.now()))
	return c
}

// SetSampleLog attaches the optional sample journal.
func (c *Controller) SetSampleLog(l *storage.SampleLog) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sampleLog = l
}

// SetPublisher attaches the optional sample publisher.
func (c *Controller) SetPublisher(p Publisher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publisher = p
}

// AttachSink registers a render sink. Every completed action's output is
// delivered to all attached sinks.
func (c *Controller) AttachSink(s Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks = append(c.sinks, s)
}

// Restore rehydrates the series from the persistence backend. Schema
// mismatches degrade to an empty series.
func (c *Controller) Restore(ctx context.Context) error {
	cols, err := c.backend.LoadSeries(ctx)
	if err != nil {
		return fmt.Errorf("failed to load persisted series: %w", err)
	}

	s, err := series.Load(cols)
	if err != nil {
		log.Printf("persisted series discarded: %v", err)
	}

	c.mu.Lock()
	c.series = s
	c.mu.Unlock()

	log.Printf("series restored: %d samples", s.Len())
	return nil
}

// Last returns the most recent output, or nil before the first action.
func (c *Controller) Last() *Output {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// SeriesLen returns the current series length.
func (c *Controller) SeriesLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.series.Len()
}

// Handle runs one action of the trigger table. On a failed fetch or a
// malformed range it returns the last good output alongside the error, so
// the render surface can stay on a stale-but-valid view.
//
// The two fetch-triggered paths run the (potentially slow, retrying)
// sensor fetch before taking the controller lock: a stalled sensor must
// not wedge the read-only re-projection triggers.
func (c *Controller) Handle(ctx context.Context, trig Trigger) (*Output, error) {
	var sample types.Sample
	if trig.Kind == TriggerTimer || trig.Kind == TriggerManualRefresh {
		var err error
		sample, err = c.fetcher.Fetch(ctx)
		if err != nil {
			c.mu.Lock()
			defer c.mu.Unlock()
			return c.last, fmt.Errorf("fetch failed: %w", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var out *Output
	var err error

	switch trig.Kind {
	case TriggerTimer:
		out, err = c.appendSample(ctx, sample, true)
	case TriggerManualRefresh:
		out, err = c.appendSample(ctx, sample, false)
	case TriggerSelection:
		out, err = c.changeSelection(trig.Selection)
	case TriggerTimeframe:
		out, err = c.changeTimeframe(trig.Timeframe)
	case TriggerRange:
		out, err = c.changeRange(trig.RangeStart, trig.RangeEnd)
	default:
		return c.last, fmt.Errorf("%w: %q", ErrUnknownTrigger, trig.Kind)
	}

	if err != nil {
		return c.last, err
	}

	c.last = out
	for _, s := range c.sinks {
		s.Render(out)
	}
	return out, nil
}

// appendSample appends a fetched sample and re-projects. persist selects
// the periodic-timer path, which also writes the series to storage; the
// manual path is session-only.
func (c *Controller) appendSample(ctx context.Context, sample types.Sample, persist bool) (*Output, error) {
	c.series = series.Append(c.series, sample)

	if c.sampleLog != nil {
		if err := c.sampleLog.Append(sample); err != nil {
			log.Printf("sample journal append failed: %v", err)
		}
	}
	if c.publisher != nil {
		c.publisher.PublishSample(sample)
	}

	if persist {
		if err := c.backend.SaveSeries(ctx, c.series.Columns()); err != nil {
			return nil, fmt.Errorf("failed to persist series: %w", err)
		}
	}

	out := c.project()
	out.Persisted = persist
	return out, nil
}

// changeSelection re-projects with a new metric selection; no fetch.
func (c *Controller) changeSelection(sel types.Selection) (*Output, error) {
	for _, m := range sel {
		if !m.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, m)
		}
	}
	c.sel = sel
	return c.project(), nil
}

// changeTimeframe recomputes the window from a named preset; no fetch.
func (c *Controller) changeTimeframe(tf window.Timeframe) (*Output, error) {
	win, err := window.Resolve(tf, types.DateOf(c.now()))
	if err != nil {
		return nil, err
	}
	c.win = win
	return c.project(), nil
}

// changeRange recomputes the window from explicit bounds; no fetch. A
// range with only one bound present is a no-op, as is a malformed date:
// the previous view stands.
func (c *Controller) changeRange(start, end string) (*Output, error) {
	if start == "" || end == "" {
		return c.lastOrProject(), nil
	}
	win, err := window.ResolveExplicit(start, end)
	if err != nil {
		return nil, err
	}
	c.win = win
	return c.project(), nil
}

// lastOrProject returns the last output, projecting fresh if none exists.
func (c *Controller) lastOrProject() *Output {
	if c.last != nil {
		return c.last
	}
	return c.project()
}

// project runs the view projector over the current series, window and
// selection, consulting the projection cache first. An empty series
// yields the default gauge values and no chart data.
func (c *Controller) project() *Output {
	if result, ok := c.cache.get(c.series.Len(), c.win, c.sel); ok {
		return &Output{Projection: result, Selection: c.sel}
	}

	result, err := project.Project(c.series, c.win, c.sel)
	if err != nil {
		// Empty series: the gauges still need a value on first load.
		result = types.ProjectionResult{Window: c.win, Snapshots: defaultSnapshots}
		return &Output{Projection: result, Selection: c.sel}
	}

	c.cache.put(c.series.Len(), c.win, c.sel, result)
	return &Output{Projection: result, Selection: c.sel}
}
