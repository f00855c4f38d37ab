package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"

	"github.com/antoine-zurcher/dashboard-ruche-connectee-mollens/pkg/series"
)

// seriesKey is the single key holding the serialized series.
var seriesKey = []byte("series/current")

// BadgerBackend persists the serialized series in BadgerDB, compressed
// with zstd.
type BadgerBackend struct {
	db         *badger.DB
	compressor *Compressor
}

// NewBadgerBackend opens the BadgerDB-backed store.
func NewBadgerBackend(cfg *Config) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(filepath.Join(cfg.Path, "badger"))
	opts.Logger = nil // Disable BadgerDB logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	compressor, err := NewCompressor(cfg.CompressionLevel)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}

	return &BadgerBackend{
		db:         db,
		compressor: compressor,
	}, nil
}

// SaveSeries implements Backend.SaveSeries.
func (b *BadgerBackend) SaveSeries(_ context.Context, cols series.Columns) error {
	payload, err := json.Marshal(cols)
	if err != nil {
		return fmt.Errorf("failed to marshal series: %w", err)
	}

	compressed := b.compressor.Compress(payload)

	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(seriesKey, compressed)
	})
}

// LoadSeries implements Backend.LoadSeries. A missing key yields empty
// columns; an unreadable payload degrades to empty columns with a log
// line rather than failing the session start.
func (b *BadgerBackend) LoadSeries(_ context.Context) (series.Columns, error) {
	var compressed []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(seriesKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			compressed = append([]byte{}, val...)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return series.Columns{}, nil
	}
	if err != nil {
		return series.Columns{}, fmt.Errorf("failed to read series: %w", err)
	}

	payload, err := b.compressor.Decompress(compressed)
	if err != nil {
		log.Printf("stored series unreadable, starting empty: %v", err)
		return series.Columns{}, nil
	}

	var cols series.Columns
	if err := json.Unmarshal(payload, &cols); err != nil {
		log.Printf("stored series unreadable, starting empty: %v", err)
		return series.Columns{}, nil
	}

	return cols, nil
}

// Close implements Backend.Close.
func (b *BadgerBackend) Close() error {
	b.compressor.Close()
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
