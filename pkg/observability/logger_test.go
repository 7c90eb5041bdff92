package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(InfoLevel, &buf)

	log.WithField("source", "directory").Info("bind succeeded")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "bind succeeded", entry["msg"])
	assert.Equal(t, "directory", entry["source"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(WarnLevel, &buf)

	log.Debug("hidden")
	log.Info("hidden too")
	assert.Zero(t, buf.Len())

	log.Warn("shown")
	assert.NotZero(t, buf.Len())
}

func TestLogger_WithError(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(InfoLevel, &buf)

	log.WithError(errors.New("connection refused")).Error("upstream call failed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "connection refused", entry["error"])

	// nil error is a no-op
	assert.Same(t, log, log.WithError(nil))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLogLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLogLevel("WARNING"))
	assert.Equal(t, ErrorLevel, ParseLogLevel("error"))
	assert.Equal(t, InfoLevel, ParseLogLevel("bogus"))
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(InfoLevel, &buf)

	ctx := WithLogger(context.Background(), log)
	ctx = WithRequestID(ctx, "req-123")

	FromContext(ctx).Info("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-123", entry["request_id"])
}

func TestFromContext_NoLogger(t *testing.T) {
	// Falls back to a default logger rather than panicking.
	assert.NotNil(t, FromContext(context.Background()))
}
