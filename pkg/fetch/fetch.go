package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/antoine-zurcher/dashboard-ruche-connectee-mollens/pkg/types"
)

// ErrSensorUnavailable is returned once the retry budget is exhausted
// without a single complete sample.
var ErrSensorUnavailable = errors.New("hive sensor unavailable")

// Field positions in the sensor's JSON array response.
const (
	fieldIndoorTemperature = iota
	fieldIndoorHumidity
	fieldOutdoorTemperature
	fieldMass
	fieldCount
)

// Config holds fetcher configuration.
type Config struct {
	// URL of the sensor endpoint.
	URL string
	// MaxAttempts bounds the retry loop. At least 1.
	MaxAttempts int
	// Backoff is the pause between attempts.
	Backoff time.Duration
	// Timeout applies per HTTP request.
	Timeout time.Duration
}

// DefaultConfig returns default fetcher configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		Backoff:     2 * time.Second,
		Timeout:     10 * time.Second,
	}
}

// Fetcher retrieves one complete multi-field sample per call.
type Fetcher struct {
	cfg    Config
	client *http.Client
	now    func() time.Time
}

// New creates a fetcher for the configured sensor endpoint.
func New(cfg Config) *Fetcher {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Fetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
	}
}

// sensorValue is one element of the sensor's JSON array response.
type sensorValue struct {
	Value float64 `json:"value"`
}

// Fetch retrieves a sample, retrying until all four readings are present
// and non-zero or the attempt budget is spent. It never returns a partial
// sample: an incomplete response counts as a failed attempt.
func (f *Fetcher) Fetch(ctx context.Context) (types.Sample, error) {
	var lastErr error

	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return types.Sample{}, ctx.Err()
			case <-time.After(f.cfg.Backoff):
			}
		}

		sample, err := f.fetchOnce(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		return sample, nil
	}

	return types.Sample{}, fmt.Errorf("%w after %d attempts: %v", ErrSensorUnavailable, f.cfg.MaxAttempts, lastErr)
}

// fetchOnce performs a single request and validates the response.
func (f *Fetcher) fetchOnce(ctx context.Context) (types.Sample, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.URL, nil)
	if err != nil {
		return types.Sample{}, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return types.Sample{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return types.Sample{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var values []sensorValue
	if err := json.NewDecoder(resp.Body).Decode(&values); err != nil {
		return types.Sample{}, fmt.Errorf("failed to decode sensor response: %w", err)
	}
	if len(values) < fieldCount {
		return types.Sample{}, fmt.Errorf("short sensor response: %d of %d fields", len(values), fieldCount)
	}

	now := f.now()
	sample := types.Sample{
		Timestamp:          now,
		Date:               types.DateOf(now),
		IndoorTemperature:  round(values[fieldIndoorTemperature].Value, 1),
		IndoorHumidity:     round(values[fieldIndoorHumidity].Value, 0),
		OutdoorTemperature: round(values[fieldOutdoorTemperature].Value, 1),
		Mass:               round(values[fieldMass].Value, 1),
	}
	if !sample.Complete() {
		return types.Sample{}, fmt.Errorf("partial sample: %+v", sample)
	}
	return sample, nil
}

// round rounds v to the given number of decimal places.
func round(v float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(v*factor) / factor
}
