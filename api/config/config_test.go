package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "btdir.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestNewDefaults(t *testing.T) {
	cfg := New()

	assert.Equal(t, DefaultBackend, cfg.Backend)
	assert.Equal(t, DefaultShellPath, cfg.Shell.Path)
	assert.Equal(t, DefaultBusCallTimeout, cfg.Bus.CallTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Setenv("BTDIR_TEST_SHELL", "/usr/local/bin/bluetoothctl")

	path := writeConfig(t, `
backend: bluez
scan_timeout: 5s
shell:
  path: ${BTDIR_TEST_SHELL}
bus:
  call_timeout: 2s
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bluez", cfg.Backend)
	assert.Equal(t, 5*time.Second, cfg.ScanTimeout)
	assert.Equal(t, "/usr/local/bin/bluetoothctl", cfg.Shell.Path)
	assert.Equal(t, 2*time.Second, cfg.Bus.CallTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 10, cfg.Log.MaxSizeMB)
}

func TestLoadInvalid(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := writeConfig(t, "bus:\n  call_timeout: 0s\n")
	_, err = Load(path)
	assert.ErrorContains(t, err, "bus call timeout")

	path = writeConfig(t, "backend: [\n")
	_, err = Load(path)
	assert.ErrorContains(t, err, "config: parse")
}
