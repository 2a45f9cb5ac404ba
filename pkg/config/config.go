// Package config loads guildbuf's TOML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config represents the structure of the config file
type Config struct {
	History  HistorySection  `toml:"history"`
	Nicklist NicklistSection `toml:"nicklist"`
	Autojoin AutojoinSection `toml:"autojoin"`
	Logging  LoggingSection  `toml:"logging"`
	Metrics  MetricsSection  `toml:"metrics"`
	Notify   NotifySection   `toml:"notify"`
}

type HistorySection struct {
	FetchCount int `toml:"fetch_count"`
}

type NicklistSection struct {
	UsePresence bool `toml:"use_presence"`
}

type AutojoinSection struct {
	Channels []string `toml:"channels"`
	Watched  []string `toml:"watched"`
}

type LoggingSection struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type MetricsSection struct {
	Listen string `toml:"listen"`
}

type NotifySection struct {
	Enabled bool `toml:"enabled"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		History: HistorySection{
			FetchCount: 25,
		},
		Nicklist: NicklistSection{
			UsePresence: true,
		},
		Logging: LoggingSection{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from a TOML file, creates a default one if
// none exists, and applies environment variable overrides
func LoadConfig(path string) (Config, error) {
	path, err := expandHome(path)
	if err != nil {
		return Config{}, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		config := DefaultConfig()
		// An unwritable location is not fatal, we still run on defaults
		_ = writeDefaultConfig(path)
		return applyEnvOverrides(config), nil
	}

	config := DefaultConfig()
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	if config.History.FetchCount <= 0 {
		config.History.FetchCount = DefaultConfig().History.FetchCount
	}

	return applyEnvOverrides(config), nil
}

// AutojoinItems parses the autojoin channel list
func (c Config) AutojoinItems() ([]Item, error) {
	return ParseItems(c.Autojoin.Channels)
}

// WatchedItems parses the watched channel list
func (c Config) WatchedItems() ([]Item, error) {
	return ParseItems(c.Autojoin.Watched)
}

func expandHome(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}
	return path, nil
}

// applyEnvOverrides applies environment variable overrides to the config
// Environment variables follow the pattern: GUILDBUF_SECTION_KEY
// Example: GUILDBUF_HISTORY_FETCH_COUNT=50
func applyEnvOverrides(config Config) Config {
	if val := os.Getenv("GUILDBUF_HISTORY_FETCH_COUNT"); val != "" {
		if count, err := strconv.Atoi(val); err == nil && count > 0 {
			config.History.FetchCount = count
		}
	}
	if val := os.Getenv("GUILDBUF_NICKLIST_USE_PRESENCE"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			config.Nicklist.UsePresence = enabled
		}
	}
	if val := os.Getenv("GUILDBUF_AUTOJOIN_CHANNELS"); val != "" {
		config.Autojoin.Channels = splitList(val)
	}
	if val := os.Getenv("GUILDBUF_AUTOJOIN_WATCHED"); val != "" {
		config.Autojoin.Watched = splitList(val)
	}
	if val := os.Getenv("GUILDBUF_LOGGING_LEVEL"); val != "" {
		config.Logging.Level = val
	}
	if val := os.Getenv("GUILDBUF_LOGGING_FORMAT"); val != "" {
		config.Logging.Format = val
	}
	if val := os.Getenv("GUILDBUF_METRICS_LISTEN"); val != "" {
		config.Metrics.Listen = val
	}
	if val := os.Getenv("GUILDBUF_NOTIFY_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			config.Notify.Enabled = enabled
		}
	}
	return config
}

// splitList parses a comma-separated list, trimming whitespace
func splitList(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// writeDefaultConfig writes the default config to a file with all options documented
func writeDefaultConfig(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content := `# guildbuf configuration
# Environment variables can override these settings:
# GUILDBUF_SECTION_KEY (e.g., GUILDBUF_HISTORY_FETCH_COUNT=50)

[history]
# Number of most recent messages fetched when a buffer is first displayed
fetch_count = 25

[nicklist]
# Group members by online/offline presence
use_presence = true

[autojoin]
# Buffers created after startup. Items are "<guild id>" for every channel of
# a guild, "<guild id>:<channel id>" for one channel, ":<channel id>" for a
# direct conversation.
# channels = ["123456789"]

# Channels opened only when they have unread messages
# watched = ["123456789:987654321"]

[logging]
level = "info"
format = "console"

[metrics]
# Address for the Prometheus /metrics endpoint, empty to disable
# listen = "127.0.0.1:9090"

[notify]
# Desktop notification when a direct conversation has unread messages
enabled = false
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
