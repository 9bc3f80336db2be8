package logger

import (
	"os"
	"path/filepath"
	"testing"

	"flowrelay/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// go test -v --run TestNewRejectsInvalidLevel
func TestNewRejectsInvalidLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}

// go test -v --run TestNewWritesFile
func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "relay.log")

	log, err := New(config.LogConfig{Level: "info", Format: "json", Environment: "prod", OutputFile: path})
	require.NoError(t, err)

	log.Info("hello")
	log.Debug("filtered")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"env":"prod"`)
	assert.NotContains(t, string(data), "filtered")
}
