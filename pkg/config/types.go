package config

// Config is the proxy's fully-resolved runtime configuration, merged from
// defaults, an optional JSON config file, environment variables, and CLI
// flags (CLI > env > file > default).
type Config struct {
	ListenHost string `json:"listen_host" mapstructure:"listen_host"`
	ListenPort int    `json:"listen_port" mapstructure:"listen_port"`

	AWSRegion string `json:"aws_region" mapstructure:"aws_region"`
	APIKey    string `json:"api_key" mapstructure:"api_key"`

	ModelCacheTTLSeconds  int `json:"model_cache_ttl_seconds" mapstructure:"model_cache_ttl_seconds"`
	RequestTimeoutSeconds int `json:"request_timeout_seconds" mapstructure:"request_timeout_seconds"`
	ModelsTimeoutSeconds  int `json:"models_timeout_seconds" mapstructure:"models_timeout_seconds"`

	LogLevel string `json:"log_level" mapstructure:"log_level"`
}
