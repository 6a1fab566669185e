// Package config loads user-level cli-worker settings from
// ~/.cli-worker/config.json.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// EnvConfigPath overrides the location of the config file.
	EnvConfigPath = "CLI_WORKER_CONFIG"

	// DefaultWorktreeBase is used when worktree.basePath is not configured.
	DefaultWorktreeBase = "~/.cli-worker/worktrees"

	// DefaultKimiCommand is the executable name looked up on PATH.
	DefaultKimiCommand = "kimi"

	defaultLogMaxSize    = 5 << 20
	defaultLogMaxBackups = 3
)

// WorktreeConfig controls where task sandboxes live.
type WorktreeConfig struct {
	BasePath string `json:"basePath,omitempty"`
}

// KimiConfig controls how the external conversational CLI is launched.
type KimiConfig struct {
	Command   string            `json:"command,omitempty"`
	Args      []string          `json:"args,omitempty"`      // extra args placed before the fixed flags
	Env       map[string]string `json:"env,omitempty"`       // extra environment for the child
	TimeoutMs int64             `json:"timeoutMs,omitempty"` // 0 = no timeout
}

// LoggingConfig controls the debug log sink.
type LoggingConfig struct {
	Path         string `json:"path,omitempty"`
	MaxSizeBytes int64  `json:"maxSizeBytes,omitempty"`
	MaxBackups   int    `json:"maxBackups,omitempty"`
}

// Config is the persisted user configuration.
type Config struct {
	Worktree WorktreeConfig `json:"worktree"`
	Kimi     KimiConfig     `json:"kimi"`
	Logging  LoggingConfig  `json:"logging"`
}

// Dir returns ~/.cli-worker without creating it.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".cli-worker")
}

// Path returns the config file location.
func Path() string {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return ExpandHome(p)
	}
	return filepath.Join(Dir(), "config.json")
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the config file, returning defaults if it is absent.
func Load() (*Config, error) {
	return LoadFile(Path())
}

// LoadFile reads the config at path, returning defaults if it is absent.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Save writes cfg to path, creating the parent directory.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		cfg = Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Worktree.BasePath) == "" {
		c.Worktree.BasePath = DefaultWorktreeBase
	}
	if strings.TrimSpace(c.Kimi.Command) == "" {
		c.Kimi.Command = DefaultKimiCommand
	}
	if c.Kimi.TimeoutMs < 0 {
		c.Kimi.TimeoutMs = 0
	}
	if strings.TrimSpace(c.Logging.Path) == "" {
		c.Logging.Path = filepath.Join(Dir(), "logs", "cli-worker.log")
	}
	if c.Logging.MaxSizeBytes <= 0 {
		c.Logging.MaxSizeBytes = defaultLogMaxSize
	}
	if c.Logging.MaxBackups <= 0 {
		c.Logging.MaxBackups = defaultLogMaxBackups
	}
}

// WorktreeBase returns the configured sandbox base directory with a leading
// "~" expanded. The path is not checked for existence.
func (c *Config) WorktreeBase() string {
	base := DefaultWorktreeBase
	if c != nil && strings.TrimSpace(c.Worktree.BasePath) != "" {
		base = c.Worktree.BasePath
	}
	return ExpandHome(base)
}

// ExpandHome replaces a leading "~" or "~/" with the user's home directory.
// "~user" forms are returned unchanged.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") && !strings.HasPrefix(p, "~"+string(filepath.Separator)) {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	return filepath.Join(home, p[2:])
}
