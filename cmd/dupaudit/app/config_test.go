package app

import (
	"os"
	"testing"

	"github.com/openplanning/dupaudit/pkg/constants"
)

// TestLoadConfig verifies basic config loading.
func TestLoadConfig(t *testing.T) {
	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config == nil {
		t.Fatal("LoadConfig() returned nil config")
	}
	if config.LogFormat == "" {
		t.Error("LogFormat not set to default")
	}
	if config.OutputDir != constants.DefaultOutputDir {
		t.Errorf("OutputDir = %s, want %s", config.OutputDir, constants.DefaultOutputDir)
	}
}

// TestConfig_LogEnvironmentVariables verifies logging env vars are loaded.
func TestConfig_LogEnvironmentVariables(t *testing.T) {
	oldLevel := os.Getenv("LOG_LEVEL")
	defer os.Setenv("LOG_LEVEL", oldLevel)

	os.Setenv("LOG_LEVEL", "debug")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", config.LogLevel)
	}
}

// TestConfig_UpdateFromFlags verifies flag values take precedence.
func TestConfig_UpdateFromFlags(t *testing.T) {
	config := &Config{LogLevel: "info"}

	config.UpdateFromFlags(true, false, true, "error")

	if !config.Verbose {
		t.Error("Verbose not updated from flags")
	}
	if !config.NoColor {
		t.Error("NoColor not updated from flags")
	}
	if config.LogLevel != "error" {
		t.Errorf("LogLevel = %s, want error", config.LogLevel)
	}

	// An empty flag value must not clobber the configured level.
	config.UpdateFromFlags(false, false, false, "")
	if config.LogLevel != "error" {
		t.Errorf("LogLevel = %s after empty flag, want error", config.LogLevel)
	}
}
