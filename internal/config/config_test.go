package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intensity-inspector/internal/inspector"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadOverlaysFileOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inspector.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
channels: 5
frame_interval: 40ms
default_update_rate: "5 Hz"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	want := Default()
	want.LogLevel = "debug"
	want.Channels = 5
	want.FrameInterval = 40 * time.Millisecond
	want.DefaultUpdateRate = "5 Hz"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("channels: [nope"), 0o600))
	_, err = Load(bad)
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("default_update_rate: 3 Hz\n"), 0o600))
	_, err = Load(invalid)
	assert.ErrorIs(t, err, inspector.ErrUnknownRate)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvLogLevel:   "warn",
		EnvJSONLogs:   "true",
		EnvChannels:   " 7 ",
		EnvUpdateRate: "Never",
	}
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.True(t, cfg.JSONLogs)
	assert.Equal(t, 7, cfg.Channels)
	assert.Equal(t, "Never", cfg.DefaultUpdateRate)

	env[EnvChannels] = "many"
	assert.Error(t, cfg.ApplyEnv(func(k string) string { return env[k] }))
}

func TestFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inspector.yaml")
	require.NoError(t, os.WriteFile(path, []byte("channels: 2\n"), 0o600))

	t.Setenv(EnvConfigPath, path)
	t.Setenv(EnvUpdateRate, "2 Hz")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Channels)
	assert.Equal(t, "2 Hz", cfg.DefaultUpdateRate)

	t.Setenv(EnvChannels, "0")
	_, err = FromEnv()
	assert.Error(t, err)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Config{DefaultUpdateRate: "bogus"}
	err := cfg.Validate()
	require.Error(t, err)

	for _, field := range []string{"channels", "frame_interval", "default_update_rate", "max_cas_retries", "event_buffer_size", "image size", "histogram_bins"} {
		assert.Contains(t, err.Error(), field)
	}
	assert.ErrorIs(t, err, inspector.ErrUnknownRate)
}
