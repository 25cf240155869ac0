package feedback

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultPath matches the feedback file name of the original Python service.
const DefaultPath = "feedback_data.json"

// Entry is one user-reported classification correction.
type Entry struct {
	URL           string `json:"url"`
	ExpectedClass int    `json:"expected_class"`
	Timestamp     string `json:"timestamp"`
	UserAgent     string `json:"user_agent"`
}

// Sink accepts feedback entries. Implementations must tolerate concurrent
// callers. Classification itself never depends on a sink; a failed write is
// the caller's problem to report, not the pipeline's.
type Sink interface {
	Record(e Entry) error
	Close() error
}

// Log is an append-only JSONL feedback sink, one entry per line.
type Log struct {
	mu   sync.Mutex
	file *os.File
}

// Open opens (or creates) a feedback log for appending. Empty path uses
// DefaultPath.
func Open(path string) (*Log, error) {
	if path == "" {
		path = DefaultPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("feedback: create directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("feedback: open file: %w", err)
	}
	return &Log{file: file}, nil
}

// Record appends an entry. It stamps the entry with the current time when
// unset, writes one JSON line, and syncs to disk.
func (l *Log) Record(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.Timestamp == "" {
		e.Timestamp = time.Now().Format(time.RFC3339)
	}

	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("feedback: marshal entry: %w", err)
	}
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("feedback: write entry: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("feedback: sync: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
