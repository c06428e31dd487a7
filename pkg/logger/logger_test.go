package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNew_JSONWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	log, closer := New(Options{Level: "info", Format: "json", Output: &buf})
	defer closer.Close()

	log.Debug("hidden")
	log.Info("weekly evaluation saved",
		StudentID("7b0c"),
		Stage("weekly"),
		Date("week_start", time.Date(2024, time.May, 4, 0, 0, 0, 0, time.UTC)),
	)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "weekly evaluation saved", entry["msg"])
	assert.Equal(t, "7b0c", entry["student_id"])
	assert.Equal(t, "weekly", entry["stage"])
	assert.Equal(t, "2024-05-04", entry["week_start"])
}

func TestNew_RotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")
	log, closer := New(Options{Format: "text", File: path, MaxSizeMB: 1})

	log.Info("hello")
	require.NoError(t, closer.Close())
	assert.FileExists(t, path)
}

func TestOrDefault(t *testing.T) {
	assert.Same(t, slog.Default(), OrDefault(nil))
}
