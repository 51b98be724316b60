package ucsi

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "/sys/class/typec", cfg.SysfsRoot)
	assert.Equal(t, "/sys/class/power_supply", cfg.PowerSupplyRoot)
	assert.Equal(t, 10*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 1000, cfg.PollAttempts)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ucsi.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sysfs:
  root: /tmp/typec
debugfs:
  poll_interval: 5ms
  poll_attempts: 3
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/typec", cfg.SysfsRoot)
	assert.Equal(t, "/sys/class/power_supply", cfg.PowerSupplyRoot)
	assert.Equal(t, 5*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 3, cfg.PollAttempts)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigBadPolling(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ucsi.yaml")
	require.NoError(t, os.WriteFile(path, []byte("debugfs:\n  poll_attempts: 0\n"), 0o644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}
