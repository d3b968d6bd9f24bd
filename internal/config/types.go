package config

import "time"

// Config holds the fully-resolved on-disk configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Groups      []GroupConfig     `mapstructure:"groups"`
	HealthCheck HealthCheckConfig `mapstructure:"health_check"`
	Retry       RetryConfig       `mapstructure:"retry"`
}

type ServerConfig struct {
	Port                    int    `mapstructure:"port"`
	SwitchThresholdMs       uint64 `mapstructure:"switch_threshold_ms"`
	GracefulSwitchTimeoutMs uint64 `mapstructure:"graceful_switch_timeout_ms"`
}

type EndpointDef struct {
	URL  string `mapstructure:"url"`
	Name string `mapstructure:"name"`
}

type GroupConfig struct {
	Name         string        `mapstructure:"name"`
	AuthTokenEnv string        `mapstructure:"auth_token_env"`
	Default      bool          `mapstructure:"default"`
	Endpoints    []EndpointDef `mapstructure:"endpoints"`
}

type HealthCheckConfig struct {
	IntervalSeconds    uint64 `mapstructure:"interval_seconds"`
	MinIntervalSeconds uint64 `mapstructure:"min_interval_seconds"`
	MaxIntervalSeconds uint64 `mapstructure:"max_interval_seconds"`
	TimeoutSeconds     uint64 `mapstructure:"timeout_seconds"`
	DynamicScaling     bool   `mapstructure:"dynamic_scaling"`
	ClaudeBinaryPath   string `mapstructure:"claude_binary_path"`
	FailureThreshold   uint32 `mapstructure:"failure_threshold"`
	ScaleCeiling       uint32 `mapstructure:"scale_ceiling"`
	SoftLatencyMs      uint64 `mapstructure:"soft_latency_ms"`
}

type RetryConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	MaxAttempts       uint32  `mapstructure:"max_attempts"`
	BaseDelayMs       uint64  `mapstructure:"base_delay_ms"`
	BackoffMultiplier float32 `mapstructure:"backoff_multiplier"`
}

func (h HealthCheckConfig) Interval() time.Duration {
	return time.Duration(h.IntervalSeconds) * time.Second
}

func (h HealthCheckConfig) MinInterval() time.Duration {
	return time.Duration(h.MinIntervalSeconds) * time.Second
}

func (h HealthCheckConfig) MaxInterval() time.Duration {
	return time.Duration(h.MaxIntervalSeconds) * time.Second
}

func (h HealthCheckConfig) Timeout() time.Duration {
	return time.Duration(h.TimeoutSeconds) * time.Second
}

func (h HealthCheckConfig) SoftLatency() time.Duration {
	return time.Duration(h.SoftLatencyMs) * time.Millisecond
}

func (s ServerConfig) SwitchThreshold() time.Duration {
	return time.Duration(s.SwitchThresholdMs) * time.Millisecond
}

func (s ServerConfig) GracefulSwitchTimeout() time.Duration {
	return time.Duration(s.GracefulSwitchTimeoutMs) * time.Millisecond
}

func (r RetryConfig) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelayMs) * time.Millisecond
}
