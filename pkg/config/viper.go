package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// envPrefix namespaces environment variables, e.g. BEDROCKPROXY_API_KEY.
const envPrefix = "BEDROCKPROXY"

// InitViper builds a *viper.Viper with defaults registered, an optional
// JSON config file loaded from configPath (if non-empty), and environment
// variables bound with the BEDROCKPROXY_ prefix. CLI flags are layered on
// top by the caller via BindRegisteredFlags.
//
// Precedence (highest to lowest): CLI flags > environment > config file >
// defaults.
func InitViper(configPath string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("listen_host", d.ListenHost)
	v.SetDefault("listen_port", d.ListenPort)
	v.SetDefault("aws_region", d.AWSRegion)
	v.SetDefault("api_key", d.APIKey)
	v.SetDefault("model_cache_ttl_seconds", d.ModelCacheTTLSeconds)
	v.SetDefault("request_timeout_seconds", d.RequestTimeoutSeconds)
	v.SetDefault("models_timeout_seconds", d.ModelsTimeoutSeconds)
	v.SetDefault("log_level", d.LogLevel)
}

// Load resolves a Config from v, the way the orchestrator wires it at
// startup.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}
