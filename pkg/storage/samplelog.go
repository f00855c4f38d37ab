package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/antoine-zurcher/dashboard-ruche-connectee-mollens/pkg/types"
)

// SampleLog is an append-only JSONL journal of every fetched sample.
// The persisted series snapshot is written on the hourly cadence only;
// the journal covers the gap between snapshots.
type SampleLog struct {
	path       string
	file       *os.File
	writer     *bufio.Writer
	mu         sync.Mutex
	flushTimer *time.Timer
}

// NewSampleLog opens a journal file under dataPath.
func NewSampleLog(dataPath string) (*SampleLog, error) {
	logPath := filepath.Join(dataPath, "journal")
	if err := os.MkdirAll(logPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	filename := filepath.Join(logPath, fmt.Sprintf("samples-%d.log", time.Now().Unix()))
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal file: %w", err)
	}

	l := &SampleLog{
		path:   logPath,
		file:   file,
		writer: bufio.NewWriter(file),
	}

	// Flush every second
	l.flushTimer = time.AfterFunc(1*time.Second, l.autoFlush)

	return l, nil
}

// Append appends one sample to the journal.
func (l *SampleLog) Append(sample types.Sample) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to marshal sample: %w", err)
	}

	if _, err := l.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write to journal: %w", err)
	}
	if err := l.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

// Flush flushes the journal to disk.
func (l *SampleLog) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush journal: %w", err)
	}

	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync journal: %w", err)
	}

	return nil
}

// autoFlush periodically flushes the journal.
func (l *SampleLog) autoFlush() {
	l.Flush()
	l.mu.Lock()
	l.flushTimer.Reset(1 * time.Second)
	l.mu.Unlock()
}

// Close closes the journal.
func (l *SampleLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.flushTimer != nil {
		l.flushTimer.Stop()
	}

	if err := l.writer.Flush(); err != nil {
		return err
	}
	return l.file.Close()
}
