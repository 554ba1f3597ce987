// Package config loads sessionhub settings from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"sessionhub/internal/logging"
	"sessionhub/internal/model"
)

const (
	DefaultAddr          = "127.0.0.1:8787"
	DefaultHeartbeat     = 15 * time.Second
	DefaultStreamBuffer  = 64
	DefaultAbortGrace    = 5 * time.Second
	DefaultImportWorkers = 4

	minHeartbeat = time.Second
	maxHeartbeat = 60 * time.Second
)

// ToolSettings overrides how one AI tool is located.
type ToolSettings struct {
	Executable string `yaml:"executable,omitempty"`
	Home       string `yaml:"home,omitempty"`
}

// Config holds the effective settings.
type Config struct {
	Addr              string                        `yaml:"addr"`
	Database          string                        `yaml:"database"`
	LogLevel          string                        `yaml:"log_level"`
	HeartbeatInterval time.Duration                 `yaml:"heartbeat_interval"`
	StreamBuffer      int                           `yaml:"stream_buffer"`
	AbortGrace        time.Duration                 `yaml:"abort_grace"`
	ImportWorkers     int                           `yaml:"import_workers"`
	Tools             map[model.AiTool]ToolSettings `yaml:"tools,omitempty"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Addr:              DefaultAddr,
		Database:          filepath.Join(dataDir(), "sessionhub.db"),
		LogLevel:          "info",
		HeartbeatInterval: DefaultHeartbeat,
		StreamBuffer:      DefaultStreamBuffer,
		AbortGrace:        DefaultAbortGrace,
		ImportWorkers:     DefaultImportWorkers,
		Tools:             map[model.AiTool]ToolSettings{},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/sessionhub/config.yaml, falling
// back to ~/.config.
func DefaultPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "sessionhub", "config.yaml")
}

func dataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "sessionhub")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "sessionhub")
}

// Load reads the file at path over the defaults and applies environment
// overrides. An empty path selects DefaultPath. A missing file is not an
// error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if cfg.Tools == nil {
		cfg.Tools = map[model.AiTool]ToolSettings{}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Addr = envOr("SESSIONHUB_ADDR", c.Addr)
	c.Database = envOr("SESSIONHUB_DB", c.Database)
	c.LogLevel = envOr("SESSIONHUB_LOG_LEVEL", c.LogLevel)
	if v := envOr("SESSIONHUB_HEARTBEAT", ""); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("SESSIONHUB_HEARTBEAT: %w", err)
		}
		c.HeartbeatInterval = d
	}
	for _, tool := range model.Tools() {
		key := "SESSIONHUB_" + strings.ToUpper(string(tool)) + "_HOME"
		if v := envOr(key, ""); v != "" {
			settings := c.Tools[tool]
			settings.Home = v
			c.Tools[tool] = settings
		}
	}
	return nil
}

// parseDuration accepts Go durations and bare seconds.
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// Validate reports the first setting that is out of range.
func (c Config) Validate() error {
	if c.HeartbeatInterval < minHeartbeat || c.HeartbeatInterval > maxHeartbeat {
		return fmt.Errorf("heartbeat_interval %s out of range [%s, %s]", c.HeartbeatInterval, minHeartbeat, maxHeartbeat)
	}
	if c.StreamBuffer < 1 {
		return fmt.Errorf("stream_buffer must be at least 1, got %d", c.StreamBuffer)
	}
	if c.ImportWorkers < 1 {
		return fmt.Errorf("import_workers must be at least 1, got %d", c.ImportWorkers)
	}
	if c.AbortGrace <= 0 {
		return fmt.Errorf("abort_grace must be positive, got %s", c.AbortGrace)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	for tool := range c.Tools {
		if !tool.Valid() {
			return fmt.Errorf("tools: %w: %q", model.ErrUnknownTool, tool)
		}
	}
	return nil
}

// Executables returns the configured executable overrides.
func (c Config) Executables() map[model.AiTool]string {
	out := map[model.AiTool]string{}
	for tool, settings := range c.Tools {
		if settings.Executable != "" {
			out[tool] = settings.Executable
		}
	}
	return out
}

// Homes returns the configured data directory overrides.
func (c Config) Homes() map[model.AiTool]string {
	out := map[model.AiTool]string{}
	for tool, settings := range c.Tools {
		if settings.Home != "" {
			out[tool] = settings.Home
		}
	}
	return out
}

// Level returns the parsed log level.
func (c Config) Level() logging.Level {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return logging.LevelInfo
	}
	return level
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
