package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdh8316/usernamescan/internal/config"
)

func TestNewJSONToStdout(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	log, err := New(config.LogConfig{Level: "debug", Format: "json", Output: "stdout"}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	log.WithField("platform", "github").Debug("classified")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &entry))
	assert.Equal(t, "classified", entry["message"])
	assert.Equal(t, "github", entry["platform"])
	assert.Contains(t, entry, "timestamp")
	assert.Zero(t, stderr.Len())
}

func TestNewTextToStderr(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	log, err := New(config.LogConfig{Level: "warn", Format: "text", Output: "stderr"}, &stdout, &stderr)
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("shown")
	assert.NotContains(t, stderr.String(), "hidden")
	assert.Contains(t, stderr.String(), "shown")
	assert.Zero(t, stdout.Len())
	assert.NoError(t, Close(log))
}

func TestNewFileOutput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "scan.log")
	log, err := New(config.LogConfig{Level: "info", Format: "text", Output: "file", FilePath: path, MaxSize: 1}, nil, nil)
	require.NoError(t, err)

	log.Info("written")
	require.NoError(t, Close(log))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "written")
}

func TestNewRejectsBadConfig(t *testing.T) {
	t.Parallel()

	for _, cfg := range []config.LogConfig{
		{Level: "loud", Format: "text", Output: "stderr"},
		{Level: "info", Format: "xml", Output: "stderr"},
		{Level: "info", Format: "text", Output: "syslog"},
		{Level: "info", Format: "text", Output: "file"},
	} {
		_, err := New(cfg, nil, nil)
		assert.Error(t, err, "%+v", cfg)
	}
}
