package app

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/openplanning/dupaudit"
	"github.com/openplanning/dupaudit/pkg/constants"
)

// TestApp_New verifies app initialization.
func TestApp_New(t *testing.T) {
	app, err := New("1.0.0", "abc123", "2024-01-01", "test")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if app.Version() != "1.0.0" {
		t.Errorf("Version() = %s, want 1.0.0", app.Version())
	}
	if app.Commit() != "abc123" {
		t.Errorf("Commit() = %s, want abc123", app.Commit())
	}
	if app.Date() != "2024-01-01" {
		t.Errorf("Date() = %s, want 2024-01-01", app.Date())
	}
	if app.BuiltBy() != "test" {
		t.Errorf("BuiltBy() = %s, want test", app.BuiltBy())
	}
	if app.Logger() == nil {
		t.Error("Logger() returned nil")
	}
	if app.Config() == nil {
		t.Error("Config() returned nil")
	}
}

// TestApp_Pipeline_Singleton verifies that Pipeline() returns the same instance.
func TestApp_Pipeline_Singleton(t *testing.T) {
	app, err := New("1.0.0", "test", "2024-01-01", "test")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	p1, err := app.Pipeline()
	if err != nil {
		t.Fatalf("Pipeline() failed: %v", err)
	}
	p2, err := app.Pipeline()
	if err != nil {
		t.Fatalf("Pipeline() failed on second call: %v", err)
	}

	if p1 != p2 {
		t.Error("Pipeline() returned different instances, expected singleton")
	}
}

// TestApp_Pipeline_ThreadSafe verifies concurrent Pipeline() calls are safe.
func TestApp_Pipeline_ThreadSafe(t *testing.T) {
	app, err := New("1.0.0", "test", "2024-01-01", "test")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	const goroutines = 100
	var wg sync.WaitGroup
	results := make([]*dupaudit.Pipeline, goroutines)
	errs := make([]error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = app.Pipeline()
		}(i)
	}
	wg.Wait()

	for i := 0; i < goroutines; i++ {
		if errs[i] != nil {
			t.Fatalf("Pipeline() failed in goroutine %d: %v", i, errs[i])
		}
		if results[i] != results[0] {
			t.Errorf("goroutine %d got a different instance", i)
		}
	}
}

// TestApp_Sources_Overrides verifies config values override the defaults.
func TestApp_Sources_Overrides(t *testing.T) {
	app, err := New("1.0.0", "test", "2024-01-01", "test")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	app.config.BaseURL = "http://localhost:8001"
	app.config.Programme = "other-programme"
	app.config.Datasets = []string{"tree"}

	sources, err := app.Sources()
	if err != nil {
		t.Fatalf("Sources() failed: %v", err)
	}

	if sources.BaseURL != "http://localhost:8001" {
		t.Errorf("BaseURL = %s, want http://localhost:8001", sources.BaseURL)
	}
	if sources.Programme != "other-programme" {
		t.Errorf("Programme = %s, want other-programme", sources.Programme)
	}
	if len(sources.Datasets) != 1 || sources.Datasets[0] != "tree" {
		t.Errorf("Datasets = %v, want [tree]", sources.Datasets)
	}
	if sources.Database != constants.DefaultDatabase {
		t.Errorf("Database = %s, want %s", sources.Database, constants.DefaultDatabase)
	}
}

// TestApp_Execute_Datasets verifies the datasets command prints the source set.
func TestApp_Execute_Datasets(t *testing.T) {
	app, err := New("1.0.0", "test", "2024-01-01", "test")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	rootCmd := app.createRootCommand()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"datasets"})

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("datasets command failed: %v", err)
	}

	for _, dataset := range dupaudit.DefaultSources().Datasets {
		if !strings.Contains(out.String(), dataset) {
			t.Errorf("datasets output missing %q:\n%s", dataset, out.String())
		}
	}
}

// TestApp_Execute_Version verifies the version command output.
func TestApp_Execute_Version(t *testing.T) {
	app, err := New("1.2.3", "test", "2024-01-01", "test")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	rootCmd := app.createRootCommand()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"version"})

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(out.String(), "dupaudit 1.2.3") {
		t.Errorf("version output = %q, want it to contain %q", out.String(), "dupaudit 1.2.3")
	}
}
