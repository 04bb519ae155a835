package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	c := LoadFromEnv()
	assert.Equal(t, 5, c.Retry.MaxRetryNumber)
	assert.Equal(t, 200*time.Millisecond, c.Retry.MaxBackOff)
	assert.Equal(t, 1000, c.Retry.DeleteAllFetchSz)
	assert.NoError(t, c.Validate())
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("EDGESTORE_MAX_RETRY_NUMBER", "9")
	t.Setenv("EDGESTORE_MAX_BACK_OFF", "500ms")
	t.Setenv("EDGESTORE_DELETE_ALL_FETCH_SIZE", "250")

	c := LoadFromEnv()
	assert.Equal(t, 9, c.Retry.MaxRetryNumber)
	assert.Equal(t, 500*time.Millisecond, c.Retry.MaxBackOff)
	assert.Equal(t, 250, c.Retry.DeleteAllFetchSz)
}

func TestLoadFromFileOverlaysEnvBaseline(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "edgestore.yaml")
	yamlBody := `
hbase:
  rpcs:
    buffered_flush_interval: "75ms"
max:
  retry:
    number: 7
  back_off: "300ms"
delete:
  all:
    fetch_size: 500
metrics:
  enabled: true
  addr: ":9100"
`
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o644))

	c, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 75*time.Millisecond, c.HBase.BufferedFlushInterval)
	assert.Equal(t, 7, c.Retry.MaxRetryNumber)
	assert.Equal(t, 300*time.Millisecond, c.Retry.MaxBackOff)
	assert.Equal(t, 500, c.Retry.DeleteAllFetchSz)
	assert.True(t, c.Metrics.Enabled)
	assert.Equal(t, ":9100", c.Metrics.Addr)
	assert.NoError(t, c.Validate())
}

func TestLoadFromFileEnvWinsOverFile(t *testing.T) {
	t.Setenv("EDGESTORE_MAX_RETRY_NUMBER", "42")

	dir := t.TempDir()
	path := filepath.Join(dir, "edgestore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max:\n  retry:\n    number: 3\n"), 0o644))

	c, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 42, c.Retry.MaxRetryNumber, "env var set before LoadFromEnv must win over the file overlay")
}

func TestValidateRejectsNonPositiveRetryBound(t *testing.T) {
	c := LoadFromEnv()
	c.Retry.MaxRetryNumber = 0
	assert.Error(t, c.Validate())
}

func TestValidateRejectsMetricsEnabledWithoutAddr(t *testing.T) {
	c := LoadFromEnv()
	c.Metrics.Enabled = true
	c.Metrics.Addr = ""
	assert.Error(t, c.Validate())
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	c := LoadFromEnv()
	c.Logging.Level = "verbose"
	assert.Error(t, c.Validate())
}
