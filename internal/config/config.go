// Package config handles configuration loading for StoryForge.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for StoryForge.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Cascade   CascadeConfig   `mapstructure:"cascade"`
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key. Supports ${VAR} expansion.
	APIKey string `mapstructure:"api_key"`
	// Model is the Claude model name to use.
	Model string `mapstructure:"model"`
	// UseBedrock routes calls through AWS Bedrock instead of the direct API.
	UseBedrock bool `mapstructure:"use_bedrock"`
	// AWSRegion is the AWS region for Bedrock.
	AWSRegion string `mapstructure:"aws_region"`
	// AWSProfile is the optional AWS profile name.
	AWSProfile string `mapstructure:"aws_profile"`
}

// PipelineConfig holds stage orchestration settings.
type PipelineConfig struct {
	// StageDelay is the courtesy pause between stages in a monolithic run.
	StageDelay time.Duration `mapstructure:"stage_delay"`
	// RetryAttempts is the generator call retry budget per stage.
	RetryAttempts int `mapstructure:"retry_attempts"`
	// RetryBackoff is the pause between generator retries.
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	// MaxConcurrentCalls bounds in-flight generator calls across all jobs.
	MaxConcurrentCalls int `mapstructure:"max_concurrent_calls"`
	// ExcerptLimit bounds the raw-text excerpt size sent to the generator.
	ExcerptLimit int `mapstructure:"excerpt_limit"`
}

// CascadeConfig holds cascade impact estimation settings. The costs and
// thresholds are tuned empirically; they are policy, not invariants.
type CascadeConfig struct {
	// TestCostSeconds is the per-test regeneration cost estimate.
	TestCostSeconds int `mapstructure:"test_cost_seconds"`
	// EntityCostSeconds is the per-entity regeneration cost estimate.
	EntityCostSeconds int `mapstructure:"entity_cost_seconds"`
	// MediumTests is the affected-test count above which risk is medium.
	MediumTests int `mapstructure:"medium_tests"`
	// MediumEntities is the affected-entity count above which risk is medium.
	MediumEntities int `mapstructure:"medium_entities"`
	// HighTests is the affected-test count above which risk is high.
	HighTests int `mapstructure:"high_tests"`
	// HighEntities is the affected-entity count above which risk is high.
	HighEntities int `mapstructure:"high_entities"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `mapstructure:"addr"`
	// MaxUploadBytes bounds uploaded document size.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

// StoreConfig holds job store settings.
type StoreConfig struct {
	// Backend selects the job store: "memory" or "sqlite".
	Backend string `mapstructure:"backend"`
	// SQLitePath is the database path for the sqlite backend.
	SQLitePath string `mapstructure:"sqlite_path"`
}

// Load loads configuration from XDG paths, project overrides, and environment
// variables. Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.storyforge.yaml in current directory or parent)
// 3. User config (~/.config/storyforge/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Load project config if present
	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("pipeline.stage_delay", "10s")
	v.SetDefault("pipeline.retry_attempts", 3)
	v.SetDefault("pipeline.retry_backoff", "2s")
	v.SetDefault("pipeline.max_concurrent_calls", 2)
	v.SetDefault("pipeline.excerpt_limit", 24000)

	v.SetDefault("cascade.test_cost_seconds", 10)
	v.SetDefault("cascade.entity_cost_seconds", 15)
	v.SetDefault("cascade.medium_tests", 5)
	v.SetDefault("cascade.medium_entities", 3)
	v.SetDefault("cascade.high_tests", 10)
	v.SetDefault("cascade.high_entities", 5)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.max_upload_bytes", int64(15*1024*1024))

	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.sqlite_path", "")
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{},
		Pipeline: PipelineConfig{
			StageDelay:         10 * time.Second,
			RetryAttempts:      3,
			RetryBackoff:       2 * time.Second,
			MaxConcurrentCalls: 2,
			ExcerptLimit:       24000,
		},
		Cascade: CascadeConfig{
			TestCostSeconds:   10,
			EntityCostSeconds: 15,
			MediumTests:       5,
			MediumEntities:    3,
			HighTests:         10,
			HighEntities:      5,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			MaxUploadBytes: 15 * 1024 * 1024,
		},
		Store: StoreConfig{
			Backend: "memory",
		},
	}
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// getUserConfigDir returns the XDG config directory for StoryForge.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "storyforge")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "storyforge")
	}
	return filepath.Join(home, ".config", "storyforge")
}

// findProjectConfig searches for .storyforge.yaml in the current directory
// and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".storyforge.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}
