package logutil

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelTrace)

	Trace(logger, "tape", "ops", 12)
	out := buf.String()
	assert.Contains(t, out, "level=TRACE")
	assert.Contains(t, out, "source=logutil_test.go:")
	assert.Contains(t, out, "ops=12")
}

func TestTraceFilteredAtInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	Trace(logger, "hidden")
	logger.Debug("hidden too")
	assert.Empty(t, buf.String())

	logger.Info("shown", "iter", 3)
	assert.Contains(t, buf.String(), "level=INFO")
	assert.Contains(t, buf.String(), "iter=3")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"trace", LevelTrace},
		{"DEBUG", slog.LevelDebug},
		{" warn ", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}
