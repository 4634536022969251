package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline.
type Flag struct {
	// Name is the long flag name (e.g. "listen-host").
	Name string

	// Shorthand is the one-letter short flag (e.g. "p"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the config key this flag maps to (e.g. "listen_host").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddIntFlag, and
// BindRegisteredFlags to avoid typos or drift between commands.
const (
	FlagListenHost     = "listen-host"
	FlagListenPort     = "listen-port"
	FlagAWSRegion      = "aws-region"
	FlagAPIKey         = "api-key"
	FlagModelCacheTTL  = "model-cache-ttl"
	FlagRequestTimeout = "request-timeout"
	FlagModelsTimeout  = "models-timeout"
	FlagLogLevel       = "log-level"
)

// Registry is the default FlagSet for the proxy's flags.
var Registry = FlagSet{
	FlagListenHost: {
		Name:        "listen-host",
		ViperKey:    "listen_host",
		Description: "Host to bind the proxy's HTTP listener to",
	},
	FlagListenPort: {
		Name:        "listen-port",
		Shorthand:   "p",
		ViperKey:    "listen_port",
		Description: "Port to bind the proxy's HTTP listener to",
	},
	FlagAWSRegion: {
		Name:        "aws-region",
		ViperKey:    "aws_region",
		Description: "AWS region Bedrock requests are signed and sent to",
	},
	FlagAPIKey: {
		Name:        "api-key",
		ViperKey:    "api_key",
		Description: "Static API key clients must present to the proxy",
	},
	FlagModelCacheTTL: {
		Name:        "model-cache-ttl",
		ViperKey:    "model_cache_ttl_seconds",
		Description: "Seconds the model-discovery cache is considered fresh",
	},
	FlagRequestTimeout: {
		Name:        "request-timeout",
		ViperKey:    "request_timeout_seconds",
		Description: "Seconds allowed for an upstream chat-completion request",
	},
	FlagModelsTimeout: {
		Name:        "models-timeout",
		ViperKey:    "models_timeout_seconds",
		Description: "Seconds allowed for an upstream model-discovery request",
	},
	FlagLogLevel: {
		Name:        "log-level",
		ViperKey:    "log_level",
		Description: "Minimum log level (debug, info, warn, error)",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddIntFlag registers an int flag on cmd from the given FlagSet.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, key string, target *int) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultInt(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().IntVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().IntVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using
// definitions from the given FlagSet. Call this in PreRunE after InitViper
// to connect flags to the viper precedence chain (flag > env > config file
// > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// AllFlagKeys returns every registry key in Registry, for callers that want
// to add and bind the full flag set in one pass.
func AllFlagKeys() []string {
	keys := make([]string, 0, len(Registry))
	for k := range Registry {
		keys = append(keys, k)
	}
	return keys
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultInt returns the default int value for a viper key from NewDefaultConfig.
func defaultInt(viperKey string) int {
	v := viper.New()
	setViperDefaults(v)
	return v.GetInt(viperKey)
}
