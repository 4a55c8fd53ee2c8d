package config

import (
	"fmt"
	"os"

	"github.com/goran-ethernal/ChainIndexor/internal/common"
	"github.com/goran-ethernal/ChainIndexor/internal/logger"
	"gopkg.in/yaml.v3"
)

// logLevelEnvVar overrides the logging section's default level. It affects
// log verbosity only, never indexing semantics.
const logLevelEnvVar = "PONDER_LOG_LEVEL"

// LoadFromFile loads the realtime sync core's configuration from a YAML
// file, applying defaults to unset fields, layering a PONDER_LOG_LEVEL
// environment override on top, and validating the result before returning
// it.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.ApplyDefaults()

	if err := applyLogLevelEnvOverride(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}

	return &cfg, nil
}

// applyLogLevelEnvOverride sets cfg.Logging.DefaultLevel from
// PONDER_LOG_LEVEL if set, overriding whatever the config file configured.
// Runs after ApplyDefaults so a nil Logging section still gets a level.
func applyLogLevelEnvOverride(cfg *Config) error {
	raw := os.Getenv(logLevelEnvVar)
	if raw == "" {
		return nil
	}

	level := common.ToLowerWithTrim(raw)
	if _, valid := logger.ValidLogLevels[level]; !valid {
		return fmt.Errorf("%s=%q: must be one of: debug, info, warn, error", logLevelEnvVar, raw)
	}

	if cfg.Logging == nil {
		cfg.Logging = &LoggingConfig{}
		cfg.Logging.ApplyDefaults()
	}
	cfg.Logging.DefaultLevel = level
	return nil
}
