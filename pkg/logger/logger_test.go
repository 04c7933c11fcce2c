package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	for _, devMode := range []bool{true, false} {
		log, err := New(devMode, "debug")
		require.NoError(t, err)
		require.NotNil(t, log)
		assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(false, "loud")
	assert.Error(t, err)
}

func TestNew_LevelFiltering(t *testing.T) {
	log, err := New(false, "error")
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.ErrorLevel))
}

func TestNewWithWriter_ProductionJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(false, zapcore.AddSync(&buf))

	log.Info("backend activated", zap.String("backend", "cuda"))
	Sync(log)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "backend activated", entry["msg"])
	assert.Equal(t, "cuda", entry["backend"])
	assert.Contains(t, entry, "timestamp")
}

func TestNewWithWriter_DevModeConsole(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(true, zapcore.AddSync(&buf))

	log.Debug("probing")
	Sync(log)

	assert.Contains(t, buf.String(), "probing")
}
