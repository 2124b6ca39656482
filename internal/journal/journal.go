// Package journal appends records to a JSONL file, one JSON object per
// line. The file is the durable round log; records are never rewritten.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Journal is an append-only JSONL writer.
type Journal struct {
	path string

	mu    sync.Mutex
	file  *os.File
	count int64
}

// Open creates the parent directory if needed and opens the file for
// appending.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	return &Journal{path: path, file: f}, nil
}

// Append marshals v and writes it as a single line.
func (j *Journal) Append(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.file.Write(data); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	if _, err := j.file.WriteString("\n"); err != nil {
		return fmt.Errorf("writing newline: %w", err)
	}

	j.count++
	return nil
}

// Count returns the number of records appended by this process.
func (j *Journal) Count() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.count
}

// Path returns the journal file path.
func (j *Journal) Path() string {
	return j.path
}

// Close closes the underlying file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file != nil {
		return j.file.Close()
	}
	return nil
}
