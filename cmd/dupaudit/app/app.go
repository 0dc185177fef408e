// Package app provides the application context and dependency wiring
// for the dupaudit CLI. It centralizes configuration, logging, and
// pipeline construction so commands stay thin.
package app

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/openplanning/dupaudit"
)

// App represents the dupaudit application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	// Configuration
	config *Config

	// Logger
	logger *zerolog.Logger

	// Pipeline instance (lazy-initialized, singleton)
	mu       sync.RWMutex
	pipeline *dupaudit.Pipeline
}

// New creates a new App instance with the given version information.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
	}

	config, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// Sources resolves the source set from the configuration: the sources
// file when one is given, the built-in register defaults otherwise.
// Flag-level overrides are applied on top either way.
func (a *App) Sources() (*dupaudit.Sources, error) {
	var sources *dupaudit.Sources
	if a.config.SourcesFile != "" {
		loaded, err := dupaudit.LoadSources(a.config.SourcesFile)
		if err != nil {
			return nil, err
		}
		sources = loaded
	} else {
		sources = dupaudit.DefaultSources()
	}

	if a.config.BaseURL != "" {
		sources.BaseURL = a.config.BaseURL
	}
	if a.config.Database != "" {
		sources.Database = a.config.Database
	}
	if a.config.Programme != "" {
		sources.Programme = a.config.Programme
	}
	if len(a.config.Datasets) > 0 {
		sources.Datasets = a.config.Datasets
	}
	return sources, nil
}

// Pipeline returns the pipeline instance, creating it lazily if needed.
// This is thread-safe and ensures only one instance is created.
func (a *App) Pipeline() (*dupaudit.Pipeline, error) {
	a.mu.RLock()
	if a.pipeline != nil {
		p := a.pipeline
		a.mu.RUnlock()
		return p, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pipeline != nil {
		return a.pipeline, nil
	}

	sources, err := a.Sources()
	if err != nil {
		return nil, err
	}

	p, err := dupaudit.New(
		dupaudit.WithSources(sources),
		dupaudit.WithLogger(a.logger),
		dupaudit.WithStrict(a.config.Strict),
	)
	if err != nil {
		return nil, err
	}

	a.pipeline = p
	return p, nil
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithPipeline sets a custom pipeline instance (useful for testing).
func WithPipeline(p *dupaudit.Pipeline) Option {
	return func(a *App) error {
		a.pipeline = p
		return nil
	}
}
