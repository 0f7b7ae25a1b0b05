package ciutil

import (
	"log/slog"
	"testing"
)

// TestDatabaseURL returns the postgres URL for integration tests, or an empty
// string when none is configured.
func TestDatabaseURL(logger *slog.Logger) string {
	return GetEnvWithFallbacks([]string{EnvTestDatabaseURL, EnvDatabaseURL}, "", logger)
}

// TestRedisAddr returns the redis address for integration tests, or an empty
// string when none is configured.
func TestRedisAddr(logger *slog.Logger) string {
	return GetEnvWithFallbacks([]string{EnvTestRedisAddr, EnvRedisAddr}, "", logger)
}

// TestMongoURI returns the mongo URI for integration tests, or an empty
// string when none is configured.
func TestMongoURI(logger *slog.Logger) string {
	return GetEnvWithFallbacks([]string{EnvTestMongoURI, EnvMongoURI}, "", logger)
}

// RequireService skips t when value is empty. In CI a missing service is
// still a skip, but it is logged so the gap shows up in the test output.
func RequireService(t testing.TB, name, value string) string {
	t.Helper()
	if value == "" {
		if IsCI() {
			t.Logf("%s not configured in CI", name)
		}
		t.Skipf("%s not configured", name)
	}
	return value
}
