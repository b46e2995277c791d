// Package config loads harness configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/autocode-ai/autocode/pkg/models"
)

// DefaultPath is where Load looks when no path is given.
const DefaultPath = ".autocode.yaml"

// Config holds all autocode configuration.
type Config struct {
	ProjectName string        `yaml:"project_name"`
	SpecFile    string        `yaml:"spec_file"`
	DBPath      string        `yaml:"db_path"`
	StatePath   string        `yaml:"state_path"`
	Backend     BackendConfig `yaml:"backend"`
	Models      ModelsConfig  `yaml:"models"`
	Audit       AuditConfig   `yaml:"audit"`
	Cache       CacheConfig   `yaml:"cache"`
	Session     SessionConfig `yaml:"session"`
}

// BackendConfig selects and configures the task-tracking adapter.
type BackendConfig struct {
	Name    string            `yaml:"name"`
	Options map[string]string `yaml:"options"`
	// RateLimit overrides the adapter's built-in quota when set.
	RateLimit *models.RateLimitConfig `yaml:"rate_limit"`
}

// ModelsConfig names the agent model per session mode.
type ModelsConfig struct {
	Initializer string `yaml:"initializer"`
	Coding      string `yaml:"coding"`
	Audit       string `yaml:"audit"`
}

// AuditConfig controls when audit sessions are scheduled.
type AuditConfig struct {
	Threshold int `yaml:"threshold"`
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
}

// SessionConfig controls the session loop.
type SessionConfig struct {
	AgentCommand  string        `yaml:"agent_command"`
	MaxIterations int           `yaml:"max_iterations"`
	ContinueDelay time.Duration `yaml:"continue_delay"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		SpecFile:  "SPEC.md",
		DBPath:    "autocode.db",
		StatePath: ".task_project.json",
		Backend: BackendConfig{
			Name: "memory",
		},
		Audit: AuditConfig{
			Threshold: 10,
		},
		Cache: CacheConfig{
			Enabled: true,
		},
		Session: SessionConfig{
			AgentCommand:  "agent",
			MaxIterations: 0,
			ContinueDelay: 3 * time.Second,
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Audit.Threshold <= 0 {
		cfg.Audit.Threshold = 10
	}
	return cfg, nil
}
