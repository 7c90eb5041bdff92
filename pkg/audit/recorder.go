package audit

import (
	"context"
	"time"
)

// Recorder persists audit events. Recording is best-effort from the
// caller's point of view: a failing trail must never block a login.
type Recorder interface {
	Record(ctx context.Context, event *Event) error
	Close() error
}

// NopRecorder discards every event
type NopRecorder struct{}

func (NopRecorder) Record(ctx context.Context, event *Event) error { return nil }
func (NopRecorder) Close() error                                   { return nil }

// MultiRecorder fans events out to several recorders. Record returns
// the first error but still delivers the event to every recorder.
type MultiRecorder struct {
	recorders []Recorder
}

// NewMultiRecorder creates a recorder that writes to every given recorder
func NewMultiRecorder(recorders ...Recorder) *MultiRecorder {
	return &MultiRecorder{recorders: recorders}
}

// Record delivers the event to every recorder
func (m *MultiRecorder) Record(ctx context.Context, event *Event) error {
	var first error
	for _, r := range m.recorders {
		if err := r.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close closes every recorder
func (m *MultiRecorder) Close() error {
	var first error
	for _, r := range m.recorders {
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// stamp fills the timestamp if the caller left it zero
func stamp(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
}
