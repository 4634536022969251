package config

import (
	"encoding/json"
	"fmt"
)

// LoadConfig resolves a fully-populated Config from defaults, an optional
// JSON config file at configPath, and environment variables
// (BEDROCKPROXY_*), in that ascending precedence order. It binds no CLI
// flags; flag values apply only when the caller binds them with
// BindRegisteredFlags on the viper returned by InitViper and then calls
// Load. configPath may be empty, in which case only defaults and
// environment apply.
func LoadConfig(configPath string) (*Config, error) {
	v, err := InitViper(configPath)
	if err != nil {
		return nil, err
	}

	cfg, err := Load(v)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that cfg is complete enough to start the proxy. The
// proxy refuses to start without an API key: there is no safe default for
// a credential clients must present.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required (set --api-key, BEDROCKPROXY_API_KEY, or api_key in the config file)")
	}
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return fmt.Errorf("listen_port %d is out of range", c.ListenPort)
	}
	if c.AWSRegion == "" {
		return fmt.Errorf("aws_region is required")
	}
	if c.ModelCacheTTLSeconds < 0 {
		return fmt.Errorf("model_cache_ttl_seconds must be non-negative")
	}
	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("request_timeout_seconds must be positive")
	}
	if c.ModelsTimeoutSeconds <= 0 {
		return fmt.Errorf("models_timeout_seconds must be positive")
	}
	return nil
}

// ParseConfigJSON parses raw JSON bytes into a Config, for callers that
// want to validate a config file's contents directly rather than through
// viper (e.g. a "validate config" CLI subcommand).
func ParseConfigJSON(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config JSON: %w", err)
	}
	return cfg, nil
}
