package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// FileRecorder appends events as JSON lines to a file. Useful for
// deployments without a database or for shipping to a log collector.
type FileRecorder struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewFileRecorder opens (or creates) the audit file for appending
func NewFileRecorder(path string) (*FileRecorder, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}
	return &FileRecorder{file: file, enc: json.NewEncoder(file)}, nil
}

// Record appends one event as a JSON line
func (r *FileRecorder) Record(ctx context.Context, event *Event) error {
	stamp(event)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enc.Encode(event); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	return nil
}

// Close closes the underlying file
func (r *FileRecorder) Close() error {
	return r.file.Close()
}
