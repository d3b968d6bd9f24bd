// Package env reads process environment variables with typed defaults, for
// the handful of startup knobs that are set before any config file is
// loaded (logging setup happens before config.Load runs).
package env

import (
	"os"
	"strconv"
	"strings"
)

// GetEnvOrDefault returns the named variable, or def if unset or empty.
func GetEnvOrDefault(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

// GetEnvBoolOrDefault parses the named variable as a bool, or returns def
// if unset or unparsable.
func GetEnvBoolOrDefault(name string, def bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// GetEnvIntOrDefault parses the named variable as an int, or returns def
// if unset or unparsable.
func GetEnvIntOrDefault(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return i
}
