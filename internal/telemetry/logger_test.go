package telemetry

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{Level: WARN, Output: &buf, Format: FormatText})
	require.NoError(t, err)

	logger.Info("should not appear")
	assert.Empty(t, buf.String())

	logger.Warn("should appear")
	assert.Contains(t, buf.String(), "should appear")
}

func TestLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{Level: INFO, Output: &buf, Format: FormatJSON})
	require.NoError(t, err)

	logger.Info("hello", map[string]interface{}{"key": "value"})

	var entry Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry.Message)
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "value", entry.Fields["key"])
}

func TestLogger_WithComponent_LevelOverride(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{Level: ERROR, Output: &buf, Format: FormatText})
	require.NoError(t, err)
	logger.SetComponentLevel("checkout", DEBUG)

	scoped := logger.WithComponent("checkout")
	scoped.Debug("checkout phase started")

	assert.Contains(t, buf.String(), "checkout phase started")
}

func TestFinishedCheckout_Emit(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{Level: TRACE, Output: &buf, Format: FormatJSON})
	require.NoError(t, err)

	FinishedCheckout{
		Mode:         ModeNormal,
		Duration:     250 * time.Millisecond,
		Success:      true,
		TreesFetched: 2,
		BlobsFetched: 5,
	}.Emit(logger)

	var entry Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "NORMAL", entry.Fields["mode"])
	assert.Equal(t, true, entry.Fields["success"])
}

func TestFinishedCheckout_Emit_FailureIsWarn(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{Level: TRACE, Output: &buf, Format: FormatJSON})
	require.NoError(t, err)

	FinishedCheckout{Mode: ModeForce, Success: false}.Emit(logger)

	var entry Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry.Level)
}

func TestParentMismatch_Emit(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{Level: TRACE, Output: &buf, Format: FormatText})
	require.NoError(t, err)

	ParentMismatch{Expected: "abc123", Actual: "def456"}.Emit(logger)

	out := buf.String()
	assert.True(t, strings.Contains(out, "abc123") && strings.Contains(out, "def456"))
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, WARN, lvl)

	_, err = ParseLevel("bogus")
	assert.Error(t, err)
}
