package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/antoine-zurcher/dashboard-ruche-connectee-mollens/pkg/series"
)

// SQLiteBackend persists the series as one row per sample.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (and if necessary migrates) the SQLite store.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteBackend{db: db}, nil
}

// migrate creates the samples table if it does not exist.
func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		date TEXT NOT NULL,
		indoor_temperature REAL NOT NULL,
		indoor_humidity REAL NOT NULL,
		outdoor_temperature REAL NOT NULL,
		mass REAL NOT NULL
	)`)
	return err
}

// SaveSeries implements Backend.SaveSeries. The full series is rewritten
// in one transaction; the series is small and append-only, so the
// replace keeps save and load symmetric with the other backends.
func (s *SQLiteBackend) SaveSeries(ctx context.Context, cols series.Columns) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM samples`); err != nil {
		return fmt.Errorf("failed to clear samples: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO samples
		(timestamp, date, indoor_temperature, indoor_humidity, outdoor_temperature, mass)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range cols.Timestamps {
		_, err := stmt.ExecContext(ctx,
			cols.Timestamps[i].Format(time.RFC3339Nano),
			cols.Dates[i],
			cols.IndoorTemperatures[i],
			cols.IndoorHumidities[i],
			cols.OutdoorTemperatures[i],
			cols.Masses[i],
		)
		if err != nil {
			return fmt.Errorf("failed to insert sample: %w", err)
		}
	}

	return tx.Commit()
}

// LoadSeries implements Backend.LoadSeries, reading samples back in
// insertion order.
func (s *SQLiteBackend) LoadSeries(ctx context.Context) (series.Columns, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT timestamp, date,
		indoor_temperature, indoor_humidity, outdoor_temperature, mass
		FROM samples ORDER BY id ASC`)
	if err != nil {
		return series.Columns{}, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var cols series.Columns
	for rows.Next() {
		var ts, date string
		var indoorTemp, indoorHum, outdoorTemp, mass float64
		if err := rows.Scan(&ts, &date, &indoorTemp, &indoorHum, &outdoorTemp, &mass); err != nil {
			return series.Columns{}, fmt.Errorf("failed to scan sample: %w", err)
		}

		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			continue // Skip rows with unreadable timestamps
		}

		cols.Timestamps = append(cols.Timestamps, parsed)
		cols.Dates = append(cols.Dates, date)
		cols.IndoorTemperatures = append(cols.IndoorTemperatures, indoorTemp)
		cols.IndoorHumidities = append(cols.IndoorHumidities, indoorHum)
		cols.OutdoorTemperatures = append(cols.OutdoorTemperatures, outdoorTemp)
		cols.Masses = append(cols.Masses, mass)
	}

	if err := rows.Err(); err != nil {
		return series.Columns{}, fmt.Errorf("failed to iterate samples: %w", err)
	}

	return cols, nil
}

// Close implements Backend.Close.
func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}
