package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/antoine-zurcher/dashboard-ruche-connectee-mollens/pkg/series"
)

// Backend is the contract for persisted series storage. The series
// travels in its column-oriented representation; a backend with nothing
// stored yet loads empty columns, never an error.
type Backend interface {
	// SaveSeries persists the full serialized series.
	SaveSeries(ctx context.Context, cols series.Columns) error

	// LoadSeries restores the serialized series. Missing or unreadable
	// data degrades to empty columns.
	LoadSeries(ctx context.Context) (series.Columns, error)

	// Close closes the backend.
	Close() error
}

// Config holds storage configuration.
type Config struct {
	// Backend selects the implementation: "memory", "badger" or "sqlite".
	Backend string
	// Path is the data directory (badger) or database file (sqlite).
	Path string
	// CompressionLevel applies to the badger payload (1-4).
	CompressionLevel int
}

// DefaultConfig returns default storage configuration.
func DefaultConfig() *Config {
	return &Config{
		Backend:          "badger",
		Path:             "./data",
		CompressionLevel: 3,
	}
}

// Open creates the configured backend.
func Open(cfg *Config) (Backend, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	switch cfg.Backend {
	case "memory":
		return NewMemoryBackend(), nil
	case "badger":
		return NewBadgerBackend(cfg)
	case "sqlite":
		return NewSQLiteBackend(cfg.Path)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

// MemoryBackend keeps the serialized series in process memory only.
// Used for tests and for running without durable storage.
type MemoryBackend struct {
	mu   sync.RWMutex
	cols series.Columns
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// SaveSeries implements Backend.SaveSeries.
func (m *MemoryBackend) SaveSeries(_ context.Context, cols series.Columns) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cols = cols
	return nil
}

// LoadSeries implements Backend.LoadSeries.
func (m *MemoryBackend) LoadSeries(_ context.Context) (series.Columns, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cols, nil
}

// Close implements Backend.Close.
func (m *MemoryBackend) Close() error {
	return nil
}
