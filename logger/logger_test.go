package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"signalwatch/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// go test -v --run TestJSONOutput
func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log, err := build("prod", config.LogConfig{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("alert dispatched")
	require.NoError(t, log.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "alert dispatched", entry["msg"])
	assert.Equal(t, "signalwatch", entry["service"])
	assert.Equal(t, "prod", entry["env"])
}

// go test -v --run TestInvalidLevel
func TestInvalidLevel(t *testing.T) {
	_, err := New("dev", config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}

// go test -v --run TestFileOutput
func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "watcher.log")
	var buf bytes.Buffer
	log, err := build("dev", config.LogConfig{Level: "debug", OutputFile: path}, &buf)
	require.NoError(t, err)

	log.Debug("sweep finished")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"sweep finished"`)
	assert.Contains(t, buf.String(), "sweep finished")
}
