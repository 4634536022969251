package config

const (
	defaultListenHost = "127.0.0.1"
	defaultListenPort = 8080

	defaultAWSRegion = "us-east-1"

	defaultModelCacheTTLSeconds  = 300
	defaultRequestTimeoutSeconds = 600
	defaultModelsTimeoutSeconds  = 30

	defaultLogLevel = "info"
)

// NewDefaultConfig returns a Config with every field set to its documented
// default. APIKey has no default — the proxy refuses to start without one.
func NewDefaultConfig() *Config {
	return &Config{
		ListenHost:            defaultListenHost,
		ListenPort:            defaultListenPort,
		AWSRegion:             defaultAWSRegion,
		ModelCacheTTLSeconds:  defaultModelCacheTTLSeconds,
		RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
		ModelsTimeoutSeconds:  defaultModelsTimeoutSeconds,
		LogLevel:              defaultLogLevel,
	}
}
