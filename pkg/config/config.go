// Package config handles configuration for the automation server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Port bounds accepted for the listener (registered/dynamic range).
const (
	MinPort = 1024
	MaxPort = 65535
)

// Config represents the server configuration (config.yaml).
type Config struct {
	// Listener
	Port            int           `yaml:"port"`
	MaxInFlight     int           `yaml:"maxInFlight"`     // Concurrent commands admitted at once
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"` // Bounded wait when stopping

	// Tree resolution
	MultiWindow bool          `yaml:"multiWindow"`
	IdleTimeout time.Duration `yaml:"idleTimeout"`
	RootRetry   RetryConfig   `yaml:"rootRetry"`

	// Host resources
	WakeLock bool   `yaml:"wakeLock"`
	Device   string `yaml:"device"` // adb serial, empty = auto-detect

	// Logging
	LogFile  string `yaml:"logFile"`
	LogLevel string `yaml:"logLevel"`
}

// RetryConfig bounds the active-window root retry loop.
type RetryConfig struct {
	Attempts int           `yaml:"attempts"` // Total attempts including the first
	Interval time.Duration `yaml:"interval"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Port:            6790,
		MaxInFlight:     4,
		ShutdownTimeout: 5 * time.Second,
		IdleTimeout:     10 * time.Second,
		RootRetry: RetryConfig{
			Attempts: 5,
			Interval: time.Second,
		},
		WakeLock: true,
		LogLevel: "info",
	}
}

// Load loads configuration from a file. Fields absent from the file keep
// their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	// Try config.yaml first
	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// Try config.yml
	configPath = filepath.Join(dir, "config.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, return defaults
	return Default(), nil
}

// ApplyEnv overrides fields from UIA2_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("UIA2_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid UIA2_PORT %q: %w", v, err)
		}
		c.Port = port
	}
	if v := os.Getenv("UIA2_MULTI_WINDOW"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid UIA2_MULTI_WINDOW %q: %w", v, err)
		}
		c.MultiWindow = b
	}
	if v := os.Getenv("UIA2_DEVICE"); v != "" {
		c.Device = v
	}
	if v := os.Getenv("UIA2_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	return nil
}

// Validate checks the values the server cannot start without.
func (c *Config) Validate() error {
	if !IsValidPort(c.Port) {
		return fmt.Errorf("invalid port %d: must be in %d-%d", c.Port, MinPort, MaxPort)
	}
	if c.RootRetry.Attempts < 1 {
		return fmt.Errorf("rootRetry.attempts must be at least 1, got %d", c.RootRetry.Attempts)
	}
	if c.RootRetry.Interval <= 0 {
		return fmt.Errorf("rootRetry.interval must be positive, got %v", c.RootRetry.Interval)
	}
	if c.MaxInFlight < 1 {
		return fmt.Errorf("maxInFlight must be at least 1, got %d", c.MaxInFlight)
	}
	return nil
}

// LogPath returns the configured log file, or <home>/logs/server.log.
func (c *Config) LogPath() string {
	if c.LogFile != "" {
		return c.LogFile
	}
	return filepath.Join(Home(), "logs", "server.log")
}

// IsValidPort reports whether port is in the registered/dynamic range.
func IsValidPort(port int) bool {
	return port >= MinPort && port <= MaxPort
}
