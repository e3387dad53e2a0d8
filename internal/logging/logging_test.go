package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nhle/bugtracker/internal/model"
)

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")

	logger, err := New(model.LogConfig{Level: "info", File: path}, false)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("bug created", zap.String("bug_id", "12"))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"bug created"`)
	assert.Contains(t, string(data), `"bug_id":"12"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestNewDebugOverridesLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	logger, err := New(model.LogConfig{Level: "warn", File: path}, true)
	require.NoError(t, err)

	logger.Debug("visible")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "visible")
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(model.LogConfig{Level: "loud", File: filepath.Join(t.TempDir(), "x.log")}, false)
	require.Error(t, err)
}

func TestNewWithoutFileIsNop(t *testing.T) {
	logger, err := New(model.LogConfig{}, false)
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
