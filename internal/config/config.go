package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/beaconsage/claude-zephyr/internal/core/domain"
)

const (
	DefaultPort                    = 8080
	DefaultSwitchThresholdMs       = 50
	DefaultGracefulSwitchTimeoutMs = 30_000

	DefaultIntervalSeconds    = 60
	DefaultMinIntervalSeconds = 30
	DefaultMaxIntervalSeconds = 3600
	DefaultTimeoutSeconds     = 15
	DefaultClaudeBinaryPath   = "claude"
	DefaultFailureThreshold   = 3
	DefaultScaleCeiling       = 4
	DefaultSoftLatencyMs      = 3000

	DefaultRetryEnabled           = true
	DefaultRetryMaxAttempts       = 3
	DefaultRetryBaseDelayMs       = 1000
	DefaultRetryBackoffMultiplier = 2.0
)

// DefaultConfig returns a configuration with the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                    DefaultPort,
			SwitchThresholdMs:       DefaultSwitchThresholdMs,
			GracefulSwitchTimeoutMs: DefaultGracefulSwitchTimeoutMs,
		},
		HealthCheck: HealthCheckConfig{
			IntervalSeconds:    DefaultIntervalSeconds,
			MinIntervalSeconds: DefaultMinIntervalSeconds,
			MaxIntervalSeconds: DefaultMaxIntervalSeconds,
			TimeoutSeconds:     DefaultTimeoutSeconds,
			DynamicScaling:     false,
			ClaudeBinaryPath:   DefaultClaudeBinaryPath,
			FailureThreshold:   DefaultFailureThreshold,
			ScaleCeiling:       DefaultScaleCeiling,
			SoftLatencyMs:      DefaultSoftLatencyMs,
		},
		Retry: RetryConfig{
			Enabled:           DefaultRetryEnabled,
			MaxAttempts:       DefaultRetryMaxAttempts,
			BaseDelayMs:       DefaultRetryBaseDelayMs,
			BackoffMultiplier: DefaultRetryBackoffMultiplier,
		},
	}
}

// Load reads the TOML config file once at startup - it is deliberately not
// watched for changes.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigType("toml")
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks structural invariants that aren't expressible as zero
// values: exactly one default group, a non-empty auth_token_env per group,
// sane bounds. Whether those variables are set is checked later by
// ResolveCredentials.
func (c *Config) Validate() error {
	if len(c.Groups) == 0 {
		return domain.NewConfigError("groups", nil, "at least one group must be configured")
	}

	defaults := 0
	names := make(map[string]bool, len(c.Groups))
	for _, g := range c.Groups {
		if g.Name == "" {
			return domain.NewConfigError("groups[].name", g.Name, "group name must not be empty")
		}
		if names[g.Name] {
			return domain.NewConfigError("groups[].name", g.Name, "duplicate group name")
		}
		names[g.Name] = true

		if len(g.Endpoints) == 0 {
			return domain.NewConfigError("groups[].endpoints", g.Name, "group must have at least one endpoint")
		}
		if g.Default {
			defaults++
		}
		if g.AuthTokenEnv == "" {
			return domain.NewConfigError("groups[].auth_token_env", g.Name, "auth_token_env must be set")
		}
	}
	if defaults != 1 {
		return domain.NewConfigError("groups[].default", defaults, "exactly one group must be flagged default")
	}

	if c.HealthCheck.MinIntervalSeconds > c.HealthCheck.MaxIntervalSeconds {
		return domain.NewConfigError("health_check.min_interval_seconds", c.HealthCheck.MinIntervalSeconds, "must not exceed max_interval_seconds")
	}

	return nil
}

// ResolveCredentials reads each group's auth_token_env from the process
// environment, failing fast if any is absent - an unset referenced
// variable is a startup failure.
func (c *Config) ResolveCredentials() (map[string]string, error) {
	resolved := make(map[string]string, len(c.Groups))
	for _, g := range c.Groups {
		value, ok := os.LookupEnv(g.AuthTokenEnv)
		if !ok || value == "" {
			return nil, domain.NewCredentialMissingError("groups[].auth_token_env", g.AuthTokenEnv,
				fmt.Sprintf("environment variable %s referenced by group %q is not set", g.AuthTokenEnv, g.Name))
		}
		resolved[g.Name] = value
	}
	return resolved, nil
}
