package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (USERHUB_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables: USERHUB_PORT -> port,
	// USERHUB_CLOUD_SYNC__ENABLED -> cloud_sync.enabled.
	if err := k.Load(env.Provider("USERHUB_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "USERHUB_"))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validLogLevels is the set of recognized log level values.
var validLogLevels = map[LogLevel]bool{
	LogDebug: true,
	LogInfo:  true,
	LogWarn:  true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.LogLevel != "" && !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q: must be one of debug, info, warn", c.LogLevel)
	}

	if c.AuthRequired && c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required when auth_required is set")
	}

	if c.CloudSync.Enabled && c.CloudSync.BaseURL == "" {
		return fmt.Errorf("cloud_sync.base_url is required when cloud_sync.enabled is set")
	}

	if c.Cache.ProfileTTLMinutes < 0 || c.Cache.ConversationTTLMinutes < 0 {
		return fmt.Errorf("cache TTLs must be non-negative")
	}

	if c.Retention.MaxConversations < 0 {
		return fmt.Errorf("retention.max_conversations must be non-negative")
	}

	if c.Retention.MaxAgeDays < 0 {
		return fmt.Errorf("retention.max_age_days must be non-negative")
	}

	if c.Services.FailureThreshold < 1 {
		return fmt.Errorf("services.failure_threshold must be at least 1")
	}

	return nil
}
