// Package config provides configuration management for the executor service.
// It supports loading configuration from environment variables, config files, and defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration sections for the service.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Executors ExecutorsConfig `mapstructure:"executors"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout"`  // in seconds
	WriteTimeout int    `mapstructure:"writeTimeout"` // in seconds
}

// NATSConfig holds NATS messaging configuration.
// An empty URL selects the in-memory event bus.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	ClientID      string `mapstructure:"clientId"`
	MaxReconnects int    `mapstructure:"maxReconnects"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// ExecutorsConfig holds the configured coding-agent executor profiles.
type ExecutorsConfig struct {
	// Default is the profile ID used when a request does not name one.
	Default string `mapstructure:"default"`

	// ApprovalTimeout is how long a tool-use approval request waits for an
	// operator decision before it is denied, in seconds. Zero waits forever.
	ApprovalTimeout int `mapstructure:"approvalTimeout"`

	// Profiles maps a profile ID to its executor configuration.
	Profiles map[string]ExecutorProfile `mapstructure:"profiles"`
}

// ApprovalTimeoutDuration returns the approval timeout as a time.Duration.
func (e *ExecutorsConfig) ApprovalTimeoutDuration() time.Duration {
	return time.Duration(e.ApprovalTimeout) * time.Second
}

// ExecutorProfile configures one concrete coding-agent executor.
type ExecutorProfile struct {
	// Kind selects the adapter ("iflow", "gemini").
	Kind string `mapstructure:"kind"`

	// Yolo enables unattended mode: all agent actions are auto-approved
	// and no approval channel is attached to spawned sessions.
	Yolo bool `mapstructure:"yolo"`

	// Model overrides the backend's default model when non-empty.
	Model string `mapstructure:"model"`

	// AppendPrompt is appended to every caller-supplied prompt.
	AppendPrompt string `mapstructure:"appendPrompt"`

	// BaseCommandOverride replaces the adapter's base invocation entirely.
	BaseCommandOverride string `mapstructure:"baseCommandOverride"`

	// AdditionalParams are appended after all adapter-chosen flags.
	AdditionalParams []string `mapstructure:"additionalParams"`

	// Env vars set for the spawned agent process.
	Env map[string]string `mapstructure:"env"`
}

// ReadTimeoutDuration returns the read timeout as a time.Duration.
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns the write timeout as a time.Duration.
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// detectDefaultLogFormat returns the appropriate log format based on environment.
// Returns "json" if running in Kubernetes or other production environments.
// Returns "text" for terminal/development use (human-readable console format).
func detectDefaultLogFormat() string {
	// Check if running in Kubernetes
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "json"
	}

	// Check for explicit production environment
	if env := os.Getenv("VIBEKANBAN_ENV"); env == "production" || env == "prod" {
		return "json"
	}

	// Default to text format for terminal use (more readable than JSON)
	return "text"
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)

	// NATS defaults - empty URL means use in-memory event bus
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.clientId", "vibe-kanban")
	v.SetDefault("nats.maxReconnects", 10)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", detectDefaultLogFormat())
	v.SetDefault("logging.outputPath", "stdout")

	// Executor defaults: every known adapter enabled with stock settings
	v.SetDefault("executors.default", "iflow")
	v.SetDefault("executors.approvalTimeout", 300)
	v.SetDefault("executors.profiles", map[string]any{
		"iflow":  map[string]any{"kind": "iflow"},
		"gemini": map[string]any{"kind": "gemini"},
	})
}

// Load reads configuration from environment variables, config file, and defaults.
// Environment variables use the prefix VIBEKANBAN_ with snake_case naming.
// Config file should be named config.yaml and placed in the current directory
// or /etc/vibe-kanban/.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from the specified path or default locations.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults first
	setDefaults(v)

	// Configure environment variables
	v.SetEnvPrefix("VIBEKANBAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Configure config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/vibe-kanban/")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := restoreProfileEnvCase(v, &cfg); err != nil {
		return nil, fmt.Errorf("error reading executor env from config file: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// restoreProfileEnvCase re-reads executor env maps straight from the config
// file. Viper lower-cases every key it unmarshals, but env var names are
// case-sensitive and must reach the agent process exactly as written.
func restoreProfileEnvCase(v *viper.Viper, cfg *Config) error {
	file := v.ConfigFileUsed()
	if file == "" || len(cfg.Executors.Profiles) == 0 {
		return nil
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		return err
	}

	var doc struct {
		Executors struct {
			Profiles map[string]struct {
				Env map[string]string `yaml:"env"`
			} `yaml:"profiles"`
		} `yaml:"executors"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}

	for name, p := range doc.Executors.Profiles {
		if len(p.Env) == 0 {
			continue
		}
		// Profile names went through the same lower-casing.
		key := strings.ToLower(name)
		if profile, ok := cfg.Executors.Profiles[key]; ok {
			profile.Env = p.Env
			cfg.Executors.Profiles[key] = profile
		}
	}
	return nil
}

// validate checks that all required configuration fields are set.
func validate(cfg *Config) error {
	var errs []string

	// Server validation - always required
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	// NATS validation - optional (uses in-memory event bus if not set)

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text")
	}

	// Executor validation
	for id, profile := range cfg.Executors.Profiles {
		if profile.Kind == "" {
			errs = append(errs, fmt.Sprintf("executors.profiles.%s.kind is required", id))
		}
	}
	if cfg.Executors.Default != "" {
		if _, ok := cfg.Executors.Profiles[cfg.Executors.Default]; !ok {
			errs = append(errs, fmt.Sprintf("executors.default %q has no matching profile", cfg.Executors.Default))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	return nil
}
