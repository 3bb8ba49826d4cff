package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitStatus(t *testing.T) {
	calls := 0
	isConnected := func(string) bool {
		calls++
		return calls >= 3
	}

	ok := waitStatus(context.Background(), isConnected, "WI-XB400", true, time.Second, time.Millisecond)
	assert.True(t, ok)
	assert.Equal(t, 3, calls)
}

func TestWaitStatusTimesOut(t *testing.T) {
	calls := 0
	isConnected := func(string) bool {
		calls++
		return true
	}

	assert.False(t, waitStatus(context.Background(), isConnected, "WI-XB400", false, 0, time.Millisecond))
	assert.Equal(t, 1, calls)
}

func TestWaitStatusCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	isConnected := func(string) bool { return false }
	assert.False(t, waitStatus(ctx, isConnected, "WI-XB400", true, time.Hour, time.Hour))
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig(options{backend: "bluez", scanTimeout: 7 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "bluez", cfg.Backend)
	assert.Equal(t, 7*time.Second, cfg.ScanTimeout)

	path := filepath.Join(t.TempDir(), "btdir.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: ${BTDIR_TEST_BACKEND}\n"), 0o600))
	t.Setenv("BTDIR_TEST_BACKEND", "bluetoothctl")

	cfg, err = loadConfig(options{configPath: path})
	require.NoError(t, err)
	assert.Equal(t, "bluetoothctl", cfg.Backend)
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	assert.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("BTDIR_TEST_DOTENV=bluez\n"), 0o600))
	t.Setenv("BTDIR_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("BTDIR_TEST_DOTENV"))

	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "bluez", os.Getenv("BTDIR_TEST_DOTENV"))
}
