package main

import (
	"os"
	"testing"

	"github.com/relaybot/relay/internal/config"
)

func TestGetConfigPath_PrefersExplicit(t *testing.T) {
	got := getConfigPath("/tmp/explicit.toml")
	if got != "/tmp/explicit.toml" {
		t.Errorf("getConfigPath = %q, want explicit path", got)
	}
}

func TestGetConfigPath_FallsBackToEnv(t *testing.T) {
	t.Setenv("RELAY_CONFIG", "/tmp/env.toml")
	got := getConfigPath("")
	if got != "/tmp/env.toml" {
		t.Errorf("getConfigPath = %q, want env path", got)
	}
}

func TestGetConfigPath_FallsBackToDefault(t *testing.T) {
	os.Unsetenv("RELAY_CONFIG")
	got := getConfigPath("")
	if got != config.DefaultConfigPath() {
		t.Errorf("getConfigPath = %q, want default path", got)
	}
}

func TestVersion_IsSet(t *testing.T) {
	if version == "" {
		t.Error("version should not be empty")
	}
}
