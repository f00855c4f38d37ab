package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func sensorBody(indoorTemp, indoorHum, outdoorTemp, mass float64) string {
	return fmt.Sprintf(`[{"value":%v},{"value":%v},{"value":%v},{"value":%v}]`,
		indoorTemp, indoorHum, outdoorTemp, mass)
}

func newTestFetcher(url string, maxAttempts int) *Fetcher {
	return New(Config{
		URL:         url,
		MaxAttempts: maxAttempts,
		Backoff:     time.Millisecond,
		Timeout:     time.Second,
	})
}

func TestFetchCompleteSample(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, sensorBody(21.57, 45.4, 10.33, 51.46))
	}))
	defer srv.Close()

	f := newTestFetcher(srv.URL, 3)
	fixed := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return fixed }

	sample, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Failed to fetch: %v", err)
	}

	// Per-field rounding: temperatures 1 decimal, humidity 0, mass 1
	if sample.IndoorTemperature != 21.6 {
		t.Errorf("Expected indoor temperature 21.6, got %v", sample.IndoorTemperature)
	}
	if sample.IndoorHumidity != 45 {
		t.Errorf("Expected indoor humidity 45, got %v", sample.IndoorHumidity)
	}
	if sample.OutdoorTemperature != 10.3 {
		t.Errorf("Expected outdoor temperature 10.3, got %v", sample.OutdoorTemperature)
	}
	if sample.Mass != 51.5 {
		t.Errorf("Expected mass 51.5, got %v", sample.Mass)
	}

	if !sample.Timestamp.Equal(fixed) {
		t.Errorf("Expected timestamp %v, got %v", fixed, sample.Timestamp)
	}
	if sample.Date.Day != 15 {
		t.Errorf("Expected date day 15, got %d", sample.Date.Day)
	}
}

func TestFetchRetriesPartialSample(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			// Mass not ready yet: must not be accepted
			fmt.Fprint(w, sensorBody(21.5, 45, 10.3, 0))
			return
		}
		fmt.Fprint(w, sensorBody(21.5, 45, 10.3, 51.5))
	}))
	defer srv.Close()

	f := newTestFetcher(srv.URL, 5)
	sample, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Failed to fetch: %v", err)
	}

	if calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}
	if !sample.Complete() {
		t.Errorf("Fetched sample is partial: %+v", sample)
	}
}

func TestFetchExhaustsRetryBudget(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		fmt.Fprint(w, sensorBody(0, 0, 0, 0))
	}))
	defer srv.Close()

	f := newTestFetcher(srv.URL, 4)
	_, err := f.Fetch(context.Background())
	if !errors.Is(err, ErrSensorUnavailable) {
		t.Fatalf("Expected ErrSensorUnavailable, got %v", err)
	}
	if calls != 4 {
		t.Errorf("Expected 4 attempts, got %d", calls)
	}
}

func TestFetchShortResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[{"value":21.5},{"value":45}]`)
	}))
	defer srv.Close()

	f := newTestFetcher(srv.URL, 1)
	if _, err := f.Fetch(context.Background()); !errors.Is(err, ErrSensorUnavailable) {
		t.Errorf("Expected ErrSensorUnavailable, got %v", err)
	}
}

func TestFetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newTestFetcher(srv.URL, 2)
	if _, err := f.Fetch(context.Background()); !errors.Is(err, ErrSensorUnavailable) {
		t.Errorf("Expected ErrSensorUnavailable, got %v", err)
	}
}

func TestFetchHonorsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, sensorBody(0, 0, 0, 0))
	}))
	defer srv.Close()

	f := New(Config{
		URL:         srv.URL,
		MaxAttempts: 100,
		Backoff:     time.Hour, // would stall without cancellation
		Timeout:     time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.Fetch(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context deadline error, got %v", err)
	}
}
