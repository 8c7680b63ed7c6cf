// Package config loads gidterm settings from JSON files, merging project
// config over global config over built-in defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// AgentConfig describes one coding-agent CLI that tasks can invoke by name.
type AgentConfig struct {
	Command         string   `json:"command"`
	Args            []string `json:"args,omitempty"`
	AutoApproveFlag string   `json:"auto_approve_flag,omitempty"`
}

// Config is the top-level gidterm configuration.
type Config struct {
	// PollInterval paces the orchestrator loop's idle tick.
	PollInterval time.Duration `json:"-"`
	// MaxConcurrent caps simultaneously running task processes. Zero
	// means unbounded.
	MaxConcurrent int64 `json:"max_concurrent"`
	// Shell is the interpreter task commands are passed to.
	Shell string `json:"shell"`
	// SessionDB is the path to the session recording database.
	SessionDB string `json:"session_db"`
	// EventBuffer sizes the executor's event channel.
	EventBuffer int `json:"event_buffer"`
	// Agents maps agent names to their CLI invocations.
	Agents map[string]AgentConfig `json:"agents"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		PollInterval:  250 * time.Millisecond,
		MaxConcurrent: 0,
		Shell:         "/bin/sh",
		SessionDB:     filepath.Join(home, ".gidterm", "sessions.db"),
		EventBuffer:   256,
		Agents: map[string]AgentConfig{
			"claude": {
				Command:         "claude",
				AutoApproveFlag: "--dangerously-skip-permissions",
			},
			"codex": {
				Command:         "codex",
				Args:            []string{"exec"},
				AutoApproveFlag: "--full-auto",
			},
			"opencode": {
				Command: "opencode",
				Args:    []string{"run"},
			},
		},
	}
}

// fileConfig mirrors Config with pointer scalars so a merge can tell "unset"
// apart from an explicit zero.
type fileConfig struct {
	PollIntervalMS *int                   `json:"poll_interval_ms"`
	MaxConcurrent  *int64                 `json:"max_concurrent"`
	Shell          *string                `json:"shell"`
	SessionDB      *string                `json:"session_db"`
	EventBuffer    *int                   `json:"event_buffer"`
	Agents         map[string]AgentConfig `json:"agents"`
}

// Load reads and merges configuration from global and project paths.
// Precedence (highest to lowest): project config, global config, defaults.
// Missing files are not errors; malformed JSON is.
func Load(globalPath, projectPath string) (*Config, error) {
	cfg := Default()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}
	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}
	return cfg, nil
}

// LoadDefault loads configuration from conventional paths.
// Global: ~/.gidterm/config.json
// Project: .gidterm/config.json (relative to cwd)
func LoadDefault() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}
	return Load(
		filepath.Join(home, ".gidterm", "config.json"),
		filepath.Join(".gidterm", "config.json"),
	)
}

func mergeConfigFile(base *Config, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded fileConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if loaded.PollIntervalMS != nil {
		if *loaded.PollIntervalMS <= 0 {
			return fmt.Errorf("parsing %s: poll_interval_ms must be positive", path)
		}
		base.PollInterval = time.Duration(*loaded.PollIntervalMS) * time.Millisecond
	}
	if loaded.MaxConcurrent != nil {
		if *loaded.MaxConcurrent < 0 {
			return fmt.Errorf("parsing %s: max_concurrent must not be negative", path)
		}
		base.MaxConcurrent = *loaded.MaxConcurrent
	}
	if loaded.Shell != nil {
		base.Shell = *loaded.Shell
	}
	if loaded.SessionDB != nil {
		base.SessionDB = *loaded.SessionDB
	}
	if loaded.EventBuffer != nil {
		base.EventBuffer = *loaded.EventBuffer
	}
	for name, agent := range loaded.Agents {
		base.Agents[name] = agent
	}
	return nil
}
