package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNewWithWriterAttachesComponent(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "store", slog.LevelInfo)
	log.Info("collection replaced", "table", "claims")

	entry := logLine(t, &buf)
	assert.Equal(t, "store", entry["component"])
	assert.Equal(t, "claimdeck", entry["system"])
	assert.Equal(t, "collection replaced", entry["msg"])
	assert.Equal(t, "claims", entry["table"])
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "store", slog.LevelInfo)
	log.Debug("noisy detail")
	assert.Zero(t, buf.Len())

	log = NewWithWriter(&buf, "store", slog.LevelDebug)
	log.Debug("noisy detail")
	assert.NotZero(t, buf.Len())
}

func TestWithTableAndOperation(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "store", slog.LevelInfo).
		WithTable("payments").
		WithOperation("bulk_delete")
	log.Warn("item failed", "id", "5")

	entry := logLine(t, &buf)
	assert.Equal(t, "payments", entry["table"])
	assert.Equal(t, "bulk_delete", entry["operation"])
}

func TestDiscardDropsEverything(t *testing.T) {
	log := Discard()
	log.Error("never seen", "err", "boom")
}
