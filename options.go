package dupaudit

import (
	"github.com/rs/zerolog"

	"github.com/openplanning/dupaudit/internal/datasette"
)

// Option is a function that configures a Pipeline
type Option func(*config) error

// config holds the assembled pipeline configuration.
type config struct {
	sources *Sources
	client  *datasette.Client
	logger  *zerolog.Logger
	strict  bool
}

// WithSources configures the source tables the pipeline reads.
func WithSources(s *Sources) Option {
	return func(c *config) error {
		c.sources = s
		return nil
	}
}

// WithClient configures the data service client, replacing the one the
// pipeline would build from the sources' base URL.
func WithClient(client *datasette.Client) Option {
	return func(c *config) error {
		c.client = client
		return nil
	}
}

// WithLogger configures the logger used throughout a run.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *config) error {
		c.logger = logger
		return nil
	}
}

// WithStrict selects the strict transport-failure policy: any source
// fetch failure aborts the run before the artifact is written. The
// default tolerant policy logs the failure and continues with that
// source empty, which suits "what do we know so far" summaries; strict
// suits audited compliance artifacts that must fail loud.
func WithStrict(strict bool) Option {
	return func(c *config) error {
		c.strict = strict
		return nil
	}
}

// WithProgramme overrides the programme whose membership is flagged in
// the output.
func WithProgramme(programme string) Option {
	return func(c *config) error {
		if c.sources == nil {
			c.sources = DefaultSources()
		}
		c.sources.Programme = programme
		return nil
	}
}
