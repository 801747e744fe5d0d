package service

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaybot/relay/internal/config"
)

func testCfg(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Bot.DataDir = t.TempDir()
	cfg.Bot.PIDFile = filepath.Join(cfg.Bot.DataDir, "relay.pid")
	return cfg
}

func TestIsRunning_NoPIDFile(t *testing.T) {
	cfg := testCfg(t)
	running, pid := IsRunning(cfg)
	assert.False(t, running)
	assert.Zero(t, pid)
}

func TestIsRunning_CurrentProcess(t *testing.T) {
	cfg := testCfg(t)
	require.NoError(t, os.WriteFile(cfg.PIDPath(), []byte(strconv.Itoa(os.Getpid())), 0644))

	running, pid := IsRunning(cfg)
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), pid)
}

func TestIsRunning_StalePIDFileIsCleanedUp(t *testing.T) {
	cfg := testCfg(t)
	// PID 1 is never the test process and, on most systems running this
	// test unprivileged, signalling it fails with EPERM rather than
	// ESRCH - use an implausibly large PID instead, which is reliably gone.
	require.NoError(t, os.WriteFile(cfg.PIDPath(), []byte("999999"), 0644))

	running, _ := IsRunning(cfg)
	assert.False(t, running)
	_, err := os.Stat(cfg.PIDPath())
	assert.True(t, os.IsNotExist(err))
}

func TestStopRunning_NotRunningErrors(t *testing.T) {
	cfg := testCfg(t)
	err := StopRunning(cfg)
	assert.Error(t, err)
}

func TestDaemon_WritePIDAndRemovePID(t *testing.T) {
	cfg := testCfg(t)
	d := &Daemon{cfg: cfg}

	require.NoError(t, d.writePID())
	data, err := os.ReadFile(cfg.PIDPath())
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	d.removePID()
	_, err = os.Stat(cfg.PIDPath())
	assert.True(t, os.IsNotExist(err))
}
