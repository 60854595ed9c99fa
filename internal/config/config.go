package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Preload policies.
const (
	PreloadNone     = "none"
	PreloadMetadata = "metadata"
	PreloadAuto     = "auto"
)

// Config holds the engine configuration.
type Config struct {
	// InitialBandwidth is the bandwidth estimate in bits per second used
	// until real downloads have been measured.
	InitialBandwidth float64 `yaml:"initialBandwidth"`
	// PreferredAudioLanguage and PreferredSubtitleLanguage are BCP 47 tags.
	PreferredAudioLanguage    string `yaml:"preferredAudioLanguage"`
	PreferredSubtitleLanguage string `yaml:"preferredSubtitleLanguage"`
	// IncludeForcedSubtitles lets forced-only renditions be auto-selected.
	IncludeForcedSubtitles bool `yaml:"includeForcedSubtitles"`

	SafetyMargin          float64 `yaml:"safetyMargin"`
	ForwardBufferDuration float64 `yaml:"forwardBufferDuration"`
	BackBufferSegments    int     `yaml:"backBufferSegments"`
	// SeekThreshold is the playhead jump, in seconds, treated as a seek.
	SeekThreshold float64 `yaml:"seekThreshold"`
	Preload       string  `yaml:"preload"`

	UserAgent             string        `yaml:"userAgent"`
	FetchAttempts         int           `yaml:"fetchAttempts"`
	CacheEvictionInterval time.Duration `yaml:"cacheEvictionInterval"`

	LogLevel string `yaml:"logLevel"`
	LogFile  string `yaml:"logFile"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		InitialBandwidth:      1_000_000,
		SafetyMargin:          0.85,
		ForwardBufferDuration: 30,
		BackBufferSegments:    2,
		SeekThreshold:         10,
		Preload:               PreloadAuto,
		UserAgent:             "hlsengine/1.0",
		FetchAttempts:         1,
		CacheEvictionInterval: 10 * time.Second,
		LogLevel:              "info",
	}
}

// LoadConfig reads a YAML file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file at %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	return &cfg, nil
}

// LoadEnvFile loads variables from the given .env files, or ".env" when none
// are given. A missing file is not an error.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// ApplyEnv overrides fields from HLS_* environment variables.
func (c *Config) ApplyEnv() {
	c.InitialBandwidth = GetEnvFloat("HLS_INITIAL_BANDWIDTH", c.InitialBandwidth)
	c.PreferredAudioLanguage = GetEnv("HLS_AUDIO_LANGUAGE", c.PreferredAudioLanguage)
	c.PreferredSubtitleLanguage = GetEnv("HLS_SUBTITLE_LANGUAGE", c.PreferredSubtitleLanguage)
	c.IncludeForcedSubtitles = GetEnvBool("HLS_INCLUDE_FORCED_SUBTITLES", c.IncludeForcedSubtitles)
	c.SafetyMargin = GetEnvFloat("HLS_SAFETY_MARGIN", c.SafetyMargin)
	c.ForwardBufferDuration = GetEnvFloat("HLS_FORWARD_BUFFER", c.ForwardBufferDuration)
	c.BackBufferSegments = GetEnvInt("HLS_BACK_BUFFER_SEGMENTS", c.BackBufferSegments)
	c.SeekThreshold = GetEnvFloat("HLS_SEEK_THRESHOLD", c.SeekThreshold)
	c.Preload = GetEnv("HLS_PRELOAD", c.Preload)
	c.UserAgent = GetEnv("HLS_USER_AGENT", c.UserAgent)
	c.FetchAttempts = GetEnvInt("HLS_FETCH_ATTEMPTS", c.FetchAttempts)
	c.LogLevel = GetEnv("HLS_LOG_LEVEL", c.LogLevel)
	c.LogFile = GetEnv("HLS_LOG_FILE", c.LogFile)
	if s := os.Getenv("HLS_CACHE_EVICTION_INTERVAL"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			c.CacheEvictionInterval = d
		}
	}
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error
	if c.InitialBandwidth <= 0 {
		errs = append(errs, fmt.Errorf("initialBandwidth must be positive, got %v", c.InitialBandwidth))
	}
	if c.SafetyMargin <= 0 || c.SafetyMargin > 1 {
		errs = append(errs, fmt.Errorf("safetyMargin must be in (0, 1], got %v", c.SafetyMargin))
	}
	if c.ForwardBufferDuration <= 0 {
		errs = append(errs, fmt.Errorf("forwardBufferDuration must be positive, got %v", c.ForwardBufferDuration))
	}
	if c.BackBufferSegments < 1 {
		errs = append(errs, fmt.Errorf("backBufferSegments must be at least 1, got %d", c.BackBufferSegments))
	}
	if c.SeekThreshold <= 0 {
		errs = append(errs, fmt.Errorf("seekThreshold must be positive, got %v", c.SeekThreshold))
	}
	switch c.Preload {
	case PreloadNone, PreloadMetadata, PreloadAuto:
	default:
		errs = append(errs, fmt.Errorf("preload must be one of none, metadata, auto; got %q", c.Preload))
	}
	if c.FetchAttempts < 1 {
		errs = append(errs, fmt.Errorf("fetchAttempts must be at least 1, got %d", c.FetchAttempts))
	}
	return errors.Join(errs...)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of key, or fallback if unset or invalid.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvFloat returns the float value of key, or fallback if unset or invalid.
func GetEnvFloat(key string, fallback float64) float64 {
	if s := os.Getenv(key); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return fallback
}

// GetEnvBool returns the boolean value of key, or fallback if unset or invalid.
func GetEnvBool(key string, fallback bool) bool {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return fallback
}
