// Package config loads and persists promptloop's JSON configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Config represents application configuration
type Config struct {
	Worker             string `json:"worker"`         // "claude" or "codex"
	MaxIterations      int    `json:"max_iterations"` // fresh iteration budget per run
	ProjectRoot        string `json:"project_root"`   // directory the worker runs in
	PromptPath         string `json:"prompt_path"`    // prompt file fed to the worker each iteration
	PRDPath            string `json:"prd_path"`       // prd.json location, relative to ProjectRoot
	HistoryPath        string `json:"history_path"`   // SQLite run ledger ("" disables it)
	LogLevel           string `json:"log_level"`      // debug, info, warn, error, none
	LogPath            string `json:"-"`
	WebPort            int    `json:"web_port"` // dashboard port for -serve
	RetryDelaySecs     int    `json:"retry_delay_seconds,omitempty"`
	IterationDelaySecs int    `json:"iteration_delay_seconds,omitempty"`
}

func defaultConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := strings.TrimSpace(os.Getenv("APPDATA")); appData != "" {
			return filepath.Join(appData, "promptloop")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Roaming", "promptloop")
	default:
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", "promptloop")
	}
}

func defaultStateDir() string {
	switch runtime.GOOS {
	case "linux":
		if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
			return filepath.Join(stateHome, "promptloop")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".local", "state", "promptloop")
	case "windows":
		if localAppData := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); localAppData != "" {
			return filepath.Join(localAppData, "promptloop")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Local", "promptloop")
	default:
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", "promptloop")
	}
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	stateDir := defaultStateDir()

	return &Config{
		Worker:        "claude",
		MaxIterations: 10,
		ProjectRoot:   ".",
		PromptPath:    ".promptloop/prompt.md",
		PRDPath:       "prd.json",
		HistoryPath:   filepath.Join(stateDir, "history.db"),
		LogLevel:      "info",
		LogPath:       filepath.Join(stateDir, "promptloop.log"),
		WebPort:       8090,
	}
}

// Load loads configuration from file. A missing file yields the defaults;
// environment variables override whatever the file says.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			config.applyEnv()
			return config, nil
		}
		return nil, err
	}

	// Unmarshal into default config (overrides only provided fields)
	if err := json.Unmarshal(data, config); err != nil {
		return nil, err
	}

	if config.Worker == "" {
		config.Worker = "claude"
	}
	if config.MaxIterations <= 0 {
		config.MaxIterations = 10
	}
	if config.ProjectRoot == "" {
		config.ProjectRoot = "."
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogPath == "" {
		config.LogPath = filepath.Join(defaultStateDir(), "promptloop.log")
	}
	if config.WebPort <= 0 {
		config.WebPort = 8090
	}

	config.applyEnv()
	return config, nil
}

// applyEnv layers PROMPTLOOP_* environment variables on top of the config.
func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("PROMPTLOOP_WORKER")); v != "" {
		c.Worker = v
	}
	if v := strings.TrimSpace(os.Getenv("PROMPTLOOP_MAX_ITERATIONS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxIterations = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("PROMPTLOOP_LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("PROMPTLOOP_LOG_PATH")); v != "" {
		c.LogPath = v
	}
	if v := strings.TrimSpace(os.Getenv("PROMPTLOOP_HISTORY")); v != "" {
		c.HistoryPath = v
	}
	if v := strings.TrimSpace(os.Getenv("PROMPTLOOP_WEB_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n < 65536 {
			c.WebPort = n
		}
	}
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// GetConfigPath returns the default config path
func GetConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.json")
}
