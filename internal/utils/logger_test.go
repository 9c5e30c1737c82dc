package utils

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(buf *bytes.Buffer) *Logger {
	return &Logger{out: buf, level: DEBUG, enabled: true}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"warn", WARNING},
		{"warning", WARNING},
		{"error", ERROR},
		{"fatal", FATAL},
		{"  Error  ", ERROR},
		{"", INFO},
		{"verbose", INFO},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLogLevel(tt.in), "input %q", tt.in)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)
	logger.SetLogLevel(WARNING)

	logger.Debug("too quiet", nil)
	logger.Info("still too quiet", nil)
	logger.Warn("loud enough", nil)
	logger.Error("definitely", nil)

	out := buf.String()
	assert.NotContains(t, out, "too quiet")
	assert.Contains(t, out, "loud enough")
	assert.Contains(t, out, "definitely")
}

func TestLoggerDisabled(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)
	logger.Enable(false)

	logger.Error("dropped", nil)
	assert.Empty(t, buf.String())

	logger.Enable(true)
	logger.Error("kept", nil)
	assert.Contains(t, buf.String(), "kept")
}

func TestLoggerDefaultFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)
	logger.SetDefaults(map[string]interface{}{"service": "scholarforge", "shared": "default"})

	logger.Info("with defaults", map[string]interface{}{"shared": "override", "user_id": "u1"})

	line := buf.String()
	assert.Contains(t, line, "service=scholarforge")
	assert.Contains(t, line, "user_id=u1")
	assert.Contains(t, line, "shared=override", "per-entry field wins over the default")
	assert.NotContains(t, line, "shared=default")
}

func TestLoggerFieldsSorted(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	logger.Info("ordering", map[string]interface{}{"zebra": 1, "alpha": 2, "mid": 3})

	line := buf.String()
	require.Contains(t, line, " | ")
	fields := line[strings.Index(line, " | ")+3:]
	alpha := strings.Index(fields, "alpha=")
	mid := strings.Index(fields, "mid=")
	zebra := strings.Index(fields, "zebra=")
	assert.True(t, alpha < mid && mid < zebra, "fields should be key-sorted: %q", fields)
}

func TestLoggerEntryCarriesCallerSite(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	logger.Info("where am I", nil)

	assert.Contains(t, buf.String(), "logger_test.go:", "entry should name the calling file")
}
