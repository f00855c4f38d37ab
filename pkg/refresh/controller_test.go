package refresh

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/antoine-zurcher/dashboard-ruche-connectee-mollens/pkg/storage"
	"github.com/antoine-zurcher/dashboard-ruche-connectee-mollens/pkg/types"
	"github.com/antoine-zurcher/dashboard-ruche-connectee-mollens/pkg/window"
)

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

// stubFetcher returns a scripted sample and counts calls.
type stubFetcher struct {
	calls  int
	sample types.Sample
	err    error
}

func (f *stubFetcher) Fetch(_ context.Context) (types.Sample, error) {
	f.calls++
	if f.err != nil {
		return types.Sample{}, f.err
	}
	s := f.sample
	s.IndoorTemperature += float64(f.calls - 1) // distinguish successive samples
	return s, nil
}

// recordingSink captures every rendered output.
type recordingSink struct {
	outputs []*Output
}

func (r *recordingSink) Render(out *Output) {
	r.outputs = append(r.outputs, out)
}

func testSample() types.Sample {
	return types.Sample{
		Timestamp:          fixedNow,
		Date:               types.DateOf(fixedNow),
		IndoorTemperature:  21.5,
		IndoorHumidity:     46,
		OutdoorTemperature: 11.2,
		Mass:               51.5,
	}
}

func newTestController(t *testing.T) (*Controller, *stubFetcher, *storage.MemoryBackend) {
	t.Helper()
	fetcher := &stubFetcher{sample: testSample()}
	backend := storage.NewMemoryBackend()
	c := New(DefaultConfig(), fetcher, backend)
	c.now = func() time.Time { return fixedNow }
	// Re-resolve the default window against the fixed clock
	c.win, _ = window.Resolve(window.TimeframeDay, types.DateOf(fixedNow))
	return c, fetcher, backend
}

func TestTimerFetchesAppendsPersists(t *testing.T) {
	c, fetcher, backend := newTestController(t)
	ctx := context.Background()

	out, err := c.Handle(ctx, Trigger{Kind: TriggerTimer})
	if err != nil {
		t.Fatalf("Failed to handle timer: %v", err)
	}

	if fetcher.calls != 1 {
		t.Errorf("Expected 1 fetch, got %d", fetcher.calls)
	}
	if c.SeriesLen() != 1 {
		t.Errorf("Expected 1 sample appended, got %d", c.SeriesLen())
	}
	if !out.Persisted {
		t.Error("Expected timer action to persist")
	}

	cols, err := backend.LoadSeries(ctx)
	if err != nil {
		t.Fatalf("Failed to load backend: %v", err)
	}
	if len(cols.Timestamps) != 1 {
		t.Errorf("Expected 1 persisted sample, got %d", len(cols.Timestamps))
	}

	if out.Projection.Snapshots.IndoorTemperature != 21.5 {
		t.Errorf("Expected snapshot 21.5, got %v", out.Projection.Snapshots.IndoorTemperature)
	}
}

func TestManualRefreshSkipsPersistence(t *testing.T) {
	c, fetcher, backend := newTestController(t)
	ctx := context.Background()

	out, err := c.Handle(ctx, Trigger{Kind: TriggerManualRefresh})
	if err != nil {
		t.Fatalf("Failed to handle manual refresh: %v", err)
	}

	if fetcher.calls != 1 {
		t.Errorf("Expected 1 fetch, got %d", fetcher.calls)
	}
	if c.SeriesLen() != 1 {
		t.Errorf("Expected 1 sample appended, got %d", c.SeriesLen())
	}
	if out.Persisted {
		t.Error("Expected manual refresh to skip persistence")
	}

	cols, err := backend.LoadSeries(ctx)
	if err != nil {
		t.Fatalf("Failed to load backend: %v", err)
	}
	if len(cols.Timestamps) != 0 {
		t.Errorf("Expected no persisted samples, got %d", len(cols.Timestamps))
	}
}

func TestSelectionChangeDoesNotFetch(t *testing.T) {
	c, fetcher, _ := newTestController(t)
	ctx := context.Background()

	if _, err := c.Handle(ctx, Trigger{Kind: TriggerManualRefresh}); err != nil {
		t.Fatalf("Failed to seed series: %v", err)
	}

	out, err := c.Handle(ctx, Trigger{
		Kind:      TriggerSelection,
		Selection: types.Selection{types.MetricMass, types.MetricOutdoorTemperature},
	})
	if err != nil {
		t.Fatalf("Failed to change selection: %v", err)
	}

	if fetcher.calls != 1 {
		t.Errorf("Selection change fetched: %d calls", fetcher.calls)
	}
	if len(out.Projection.Sequences) != 2 {
		t.Fatalf("Expected 2 sequences, got %d", len(out.Projection.Sequences))
	}
	if out.Projection.Sequences[0].Metric != types.MetricMass {
		t.Errorf("Expected mass first, got %s", out.Projection.Sequences[0].Metric)
	}
}

func TestSelectionRejectsUnknownMetric(t *testing.T) {
	c, _, _ := newTestController(t)
	ctx := context.Background()

	seed, err := c.Handle(ctx, Trigger{Kind: TriggerManualRefresh})
	if err != nil {
		t.Fatalf("Failed to seed series: %v", err)
	}

	out, err := c.Handle(ctx, Trigger{
		Kind:      TriggerSelection,
		Selection: types.Selection{"pollen_count"},
	})
	if !errors.Is(err, ErrUnknownMetric) {
		t.Fatalf("Expected ErrUnknownMetric, got %v", err)
	}
	if out != seed {
		t.Error("Expected the last good output on rejected selection")
	}
}

func TestTimeframeChangeRecomputesWindow(t *testing.T) {
	c, fetcher, _ := newTestController(t)
	ctx := context.Background()

	if _, err := c.Handle(ctx, Trigger{Kind: TriggerManualRefresh}); err != nil {
		t.Fatalf("Failed to seed series: %v", err)
	}

	out, err := c.Handle(ctx, Trigger{Kind: TriggerTimeframe, Timeframe: window.TimeframeWeek})
	if err != nil {
		t.Fatalf("Failed to change timeframe: %v", err)
	}

	if fetcher.calls != 1 {
		t.Errorf("Timeframe change fetched: %d calls", fetcher.calls)
	}

	wantStart := types.Date{Year: 2024, Month: time.June, Day: 8}
	if out.Projection.Window.Start != wantStart {
		t.Errorf("Expected window start %v, got %v", wantStart, out.Projection.Window.Start)
	}
}

func TestExplicitRangeChangesWindow(t *testing.T) {
	c, _, _ := newTestController(t)
	ctx := context.Background()

	if _, err := c.Handle(ctx, Trigger{Kind: TriggerManualRefresh}); err != nil {
		t.Fatalf("Failed to seed series: %v", err)
	}

	out, err := c.Handle(ctx, Trigger{
		Kind:       TriggerRange,
		RangeStart: "2024-06-01",
		RangeEnd:   "2024-06-15",
	})
	if err != nil {
		t.Fatalf("Failed to change range: %v", err)
	}

	wantStart := types.Date{Year: 2024, Month: time.June, Day: 1}
	if out.Projection.Window.Start != wantStart {
		t.Errorf("Expected window start %v, got %v", wantStart, out.Projection.Window.Start)
	}
}

func TestHalfOpenRangeIsNoOp(t *testing.T) {
	c, _, _ := newTestController(t)
	ctx := context.Background()

	seed, err := c.Handle(ctx, Trigger{Kind: TriggerManualRefresh})
	if err != nil {
		t.Fatalf("Failed to seed series: %v", err)
	}

	out, err := c.Handle(ctx, Trigger{Kind: TriggerRange, RangeStart: "2024-06-01"})
	if err != nil {
		t.Fatalf("Expected no error on half-open range, got %v", err)
	}

	if !reflect.DeepEqual(out.Projection.Window, seed.Projection.Window) {
		t.Errorf("Half-open range changed the window: %+v != %+v",
			out.Projection.Window, seed.Projection.Window)
	}
}

func TestMalformedRangeKeepsLastView(t *testing.T) {
	c, _, _ := newTestController(t)
	ctx := context.Background()

	seed, err := c.Handle(ctx, Trigger{Kind: TriggerManualRefresh})
	if err != nil {
		t.Fatalf("Failed to seed series: %v", err)
	}

	out, err := c.Handle(ctx, Trigger{
		Kind:       TriggerRange,
		RangeStart: "01/06/2024",
		RangeEnd:   "2024-06-15",
	})
	if !errors.Is(err, window.ErrBadDate) {
		t.Fatalf("Expected ErrBadDate, got %v", err)
	}
	if out != seed {
		t.Error("Expected the last good output on malformed range")
	}

	// State untouched: the next re-projection still uses the old window
	next, err := c.Handle(ctx, Trigger{Kind: TriggerSelection, Selection: types.Selection{types.MetricMass}})
	if err != nil {
		t.Fatalf("Failed to change selection: %v", err)
	}
	if !reflect.DeepEqual(next.Projection.Window, seed.Projection.Window) {
		t.Errorf("Malformed range leaked into state: %+v", next.Projection.Window)
	}
}

func TestFailedFetchKeepsLastView(t *testing.T) {
	c, fetcher, _ := newTestController(t)
	ctx := context.Background()

	seed, err := c.Handle(ctx, Trigger{Kind: TriggerManualRefresh})
	if err != nil {
		t.Fatalf("Failed to seed series: %v", err)
	}

	fetcher.err = errors.New("sensor offline")
	out, err := c.Handle(ctx, Trigger{Kind: TriggerTimer})
	if err == nil {
		t.Fatal("Expected fetch error")
	}
	if out != seed {
		t.Error("Expected the last good output on failed fetch")
	}
	if c.SeriesLen() != 1 {
		t.Errorf("Failed fetch grew the series: %d", c.SeriesLen())
	}
}

func TestEmptySeriesDefaultSnapshots(t *testing.T) {
	c, _, _ := newTestController(t)

	out, err := c.Handle(context.Background(), Trigger{
		Kind:      TriggerSelection,
		Selection: types.Selection{types.MetricIndoorTemperature},
	})
	if err != nil {
		t.Fatalf("Failed to project empty series: %v", err)
	}

	if out.Projection.Snapshots != defaultSnapshots {
		t.Errorf("Expected default snapshots %+v, got %+v",
			defaultSnapshots, out.Projection.Snapshots)
	}
	if len(out.Projection.Sequences) != 0 {
		t.Errorf("Expected no chart data on empty series, got %d sequences",
			len(out.Projection.Sequences))
	}
}

func TestProjectionCacheReuse(t *testing.T) {
	c, _, _ := newTestController(t)
	ctx := context.Background()

	if _, err := c.Handle(ctx, Trigger{Kind: TriggerManualRefresh}); err != nil {
		t.Fatalf("Failed to seed series: %v", err)
	}

	sel := types.Selection{types.MetricMass}
	first, err := c.Handle(ctx, Trigger{Kind: TriggerSelection, Selection: sel})
	if err != nil {
		t.Fatalf("Failed to project: %v", err)
	}
	second, err := c.Handle(ctx, Trigger{Kind: TriggerSelection, Selection: sel})
	if err != nil {
		t.Fatalf("Failed to re-project: %v", err)
	}

	if !reflect.DeepEqual(first.Projection, second.Projection) {
		t.Error("Cached projection differs from computed one")
	}
	if c.cache.size() == 0 {
		t.Error("Expected the projection cache to hold an entry")
	}
}

func TestSinkReceivesEveryAction(t *testing.T) {
	c, _, _ := newTestController(t)
	sink := &recordingSink{}
	c.AttachSink(sink)

	ctx := context.Background()
	if _, err := c.Handle(ctx, Trigger{Kind: TriggerManualRefresh}); err != nil {
		t.Fatalf("Failed to refresh: %v", err)
	}
	if _, err := c.Handle(ctx, Trigger{Kind: TriggerTimeframe, Timeframe: window.TimeframeMonth}); err != nil {
		t.Fatalf("Failed to change timeframe: %v", err)
	}

	if len(sink.outputs) != 2 {
		t.Errorf("Expected 2 rendered outputs, got %d", len(sink.outputs))
	}
}

func TestRestoreRehydratesSeries(t *testing.T) {
	fetcher := &stubFetcher{sample: testSample()}
	backend := storage.NewMemoryBackend()
	ctx := context.Background()

	// First session: two timer ticks persist two samples
	first := New(DefaultConfig(), fetcher, backend)
	first.now = func() time.Time { return fixedNow }
	for i := 0; i < 2; i++ {
		if _, err := first.Handle(ctx, Trigger{Kind: TriggerTimer}); err != nil {
			t.Fatalf("Failed to handle timer: %v", err)
		}
	}

	// Second session restores them
	second := New(DefaultConfig(), &stubFetcher{sample: testSample()}, backend)
	if err := second.Restore(ctx); err != nil {
		t.Fatalf("Failed to restore: %v", err)
	}
	if second.SeriesLen() != 2 {
		t.Errorf("Expected 2 restored samples, got %d", second.SeriesLen())
	}
}

func TestUnknownTrigger(t *testing.T) {
	c, _, _ := newTestController(t)
	if _, err := c.Handle(context.Background(), Trigger{Kind: "calibrate"}); !errors.Is(err, ErrUnknownTrigger) {
		t.Errorf("Expected ErrUnknownTrigger, got %v", err)
	}
}
