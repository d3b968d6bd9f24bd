package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, uint64(DefaultSwitchThresholdMs), cfg.Server.SwitchThresholdMs)
	assert.Equal(t, uint64(DefaultGracefulSwitchTimeoutMs), cfg.Server.GracefulSwitchTimeoutMs)

	assert.Equal(t, uint64(DefaultIntervalSeconds), cfg.HealthCheck.IntervalSeconds)
	assert.False(t, cfg.HealthCheck.DynamicScaling)
	assert.Equal(t, DefaultClaudeBinaryPath, cfg.HealthCheck.ClaudeBinaryPath)

	assert.True(t, cfg.Retry.Enabled)
	assert.Equal(t, uint32(DefaultRetryMaxAttempts), cfg.Retry.MaxAttempts)
}

func TestDurationHelpers(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 60*time.Second, cfg.HealthCheck.Interval())
	assert.Equal(t, 30*time.Second, cfg.HealthCheck.MinInterval())
	assert.Equal(t, 3600*time.Second, cfg.HealthCheck.MaxInterval())
	assert.Equal(t, 15*time.Second, cfg.HealthCheck.Timeout())
	assert.Equal(t, 3*time.Second, cfg.HealthCheck.SoftLatency())
	assert.Equal(t, 50*time.Millisecond, cfg.Server.SwitchThreshold())
	assert.Equal(t, 30*time.Second, cfg.Server.GracefulSwitchTimeout())
	assert.Equal(t, 1*time.Second, cfg.Retry.BaseDelay())
}

func validGroup() GroupConfig {
	return GroupConfig{
		Name:         "primary",
		AuthTokenEnv: "ZEPHYR_TEST_TOKEN",
		Default:      true,
		Endpoints: []EndpointDef{
			{Name: "local", URL: "http://localhost:11434"},
		},
	}
}

func TestValidate_DefaultConfigNeedsGroups(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "groups")
}

func TestValidate_SingleValidGroupPasses(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Groups = []GroupConfig{validGroup()}

	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsEmptyGroupName(t *testing.T) {
	cfg := DefaultConfig()
	g := validGroup()
	g.Name = ""
	cfg.Groups = []GroupConfig{g}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
}

func TestValidate_RejectsDuplicateGroupNames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Groups = []GroupConfig{validGroup(), validGroup()}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestValidate_RejectsGroupWithNoEndpoints(t *testing.T) {
	cfg := DefaultConfig()
	g := validGroup()
	g.Endpoints = nil
	cfg.Groups = []GroupConfig{g}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoints")
}

func TestValidate_RequiresExactlyOneDefaultGroup(t *testing.T) {
	cfg := DefaultConfig()
	first, second := validGroup(), validGroup()
	first.Name, second.Name = "one", "two"
	second.Default = false
	first.Default = false
	cfg.Groups = []GroupConfig{first, second}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default")

	second.Default = true
	cfg.Groups = []GroupConfig{first, second}
	err = cfg.Validate()
	require.NoError(t, err)

	first.Default = true
	cfg.Groups = []GroupConfig{first, second}
	assert.Error(t, cfg.Validate(), "exactly one default must still be enforced with two defaults")
}

func TestValidate_RejectsMissingAuthTokenEnv(t *testing.T) {
	cfg := DefaultConfig()
	g := validGroup()
	g.AuthTokenEnv = ""
	cfg.Groups = []GroupConfig{g}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth_token_env")
}

func TestValidate_RejectsInvertedHealthCheckInterval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Groups = []GroupConfig{validGroup()}
	cfg.HealthCheck.MinIntervalSeconds = 120
	cfg.HealthCheck.MaxIntervalSeconds = 30

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_interval_seconds")
}

func TestResolveCredentials(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Groups = []GroupConfig{validGroup()}

	_, err := cfg.ResolveCredentials()
	require.Error(t, err, "absent env var must fail fast")

	t.Setenv("ZEPHYR_TEST_TOKEN", "sk-test-token")

	creds, err := cfg.ResolveCredentials()
	require.NoError(t, err)
	assert.Equal(t, "sk-test-token", creds["primary"])
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/to/zephyr.toml")
	require.Error(t, err)
}

func TestLoad_ReadsTOMLFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.toml"

	contents := `
[server]
port = 9090

[[groups]]
name = "primary"
auth_token_env = "ZEPHYR_TEST_TOKEN"
default = true

[[groups.endpoints]]
url = "http://localhost:11434"
name = "local"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	require.Len(t, cfg.Groups, 1)
	assert.Equal(t, "primary", cfg.Groups[0].Name)
	assert.True(t, cfg.Groups[0].Default)
}
