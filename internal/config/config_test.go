package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1_000_000.0, cfg.InitialBandwidth)
	assert.Equal(t, 0.85, cfg.SafetyMargin)
	assert.Equal(t, 30.0, cfg.ForwardBufferDuration)
	assert.Equal(t, 2, cfg.BackBufferSegments)
	assert.Equal(t, PreloadAuto, cfg.Preload)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "player.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
initialBandwidth: 2500000
preferredAudioLanguage: de
preferredSubtitleLanguage: en
forwardBufferDuration: 12
cacheEvictionInterval: 30s
preload: none
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2_500_000.0, cfg.InitialBandwidth)
	assert.Equal(t, "de", cfg.PreferredAudioLanguage)
	assert.Equal(t, "en", cfg.PreferredSubtitleLanguage)
	assert.Equal(t, 12.0, cfg.ForwardBufferDuration)
	assert.Equal(t, 30*time.Second, cfg.CacheEvictionInterval)
	assert.Equal(t, PreloadNone, cfg.Preload)
	assert.Equal(t, 0.85, cfg.SafetyMargin, "unset fields keep their defaults")
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("safetyMargin: [1, 2"), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("HLS_INITIAL_BANDWIDTH", "3000000")
	t.Setenv("HLS_AUDIO_LANGUAGE", "fr")
	t.Setenv("HLS_INCLUDE_FORCED_SUBTITLES", "true")
	t.Setenv("HLS_BACK_BUFFER_SEGMENTS", "not-a-number")
	t.Setenv("HLS_CACHE_EVICTION_INTERVAL", "1m")

	cfg := Default()
	cfg.ApplyEnv()
	assert.Equal(t, 3_000_000.0, cfg.InitialBandwidth)
	assert.Equal(t, "fr", cfg.PreferredAudioLanguage)
	assert.True(t, cfg.IncludeForcedSubtitles)
	assert.Equal(t, 2, cfg.BackBufferSegments, "invalid values fall back")
	assert.Equal(t, time.Minute, cfg.CacheEvictionInterval)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("HLS_TEST_PRELOAD_VALUE=metadata\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("HLS_TEST_PRELOAD_VALUE") })

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "metadata", GetEnv("HLS_TEST_PRELOAD_VALUE", "auto"))

	assert.NoError(t, LoadEnvFile(filepath.Join(dir, "absent.env")))
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.SafetyMargin = 1.5
	cfg.Preload = "eager"
	cfg.FetchAttempts = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "safetyMargin")
	assert.Contains(t, err.Error(), "preload")
	assert.Contains(t, err.Error(), "fetchAttempts")
}
