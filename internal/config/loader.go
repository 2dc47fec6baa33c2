package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from the specified file path.
// It supports YAML files and performs environment variable substitution.
// A key that no field of Config declares is rejected.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := v.UnmarshalExact(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	substituteEnvVars(cfg)

	return cfg, nil
}

// ApplyOverrides applies non-zero CLI flag values on top of the loaded
// configuration. A zero value (empty string, non-positive int) leaves the
// corresponding field untouched.
func (c *Config) ApplyOverrides(logLevel string, batchSize int) {
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if batchSize > 0 {
		c.TaskScheduler.BatchSize = batchSize
	}
}

// LoadFromViper creates a Config from an existing Viper instance.
// Useful for testing or when Viper is configured externally.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	substituteEnvVars(cfg)

	return cfg, nil
}

// envVarPattern matches ${VAR_NAME} or $VAR_NAME patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment variable
// values across the fields most likely to carry secrets or host-specific
// paths.
func substituteEnvVars(cfg *Config) {
	cfg.Logging.Dir = expandEnvVar(cfg.Logging.Dir)
	cfg.StatusHandler.Config.DBFile = expandEnvVar(cfg.StatusHandler.Config.DBFile)
	cfg.ProcEnv.Config.RemoteHost = expandEnvVar(cfg.ProcEnv.Config.RemoteHost)
	cfg.ProcEnv.Config.IndexHost = expandEnvVar(cfg.ProcEnv.Config.IndexHost)
	cfg.ProcEnv.Config.StatusDir = expandEnvVar(cfg.ProcEnv.Config.StatusDir)
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}
