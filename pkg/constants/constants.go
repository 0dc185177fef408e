// Package constants provides shared constants used throughout the dupaudit codebase.
// This includes timeouts, retry limits, file permissions, and the names of the
// remote tables and output artifacts the pipeline works with.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the standard timeout for HTTP requests to the data service
	DefaultHTTPTimeout = 30 * time.Second

	// StreamFetchTimeout is the timeout for streamed CSV table downloads, which
	// can run to several hundred thousand rows for the larger entity tables
	StreamFetchTimeout = 5 * time.Minute

	// CommandTimeout is the default timeout for CLI commands
	CommandTimeout = 10 * time.Minute

	// RetryBackoff is the base backoff duration for retries
	RetryBackoff = 1 * time.Second

	// MaxRetryBackoff is the maximum backoff duration for retries
	MaxRetryBackoff = 30 * time.Second
)

// Limit constants define various limits and capacities
const (
	// MaxRetries is the maximum number of attempts for a failed fetch
	MaxRetries = 3

	// MaxConcurrentFetches is the maximum number of source tables downloaded at once
	MaxConcurrentFetches = 5
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Source table constants name the remote tables consumed by the pipeline
const (
	// ExpectationOperation is the expectation operation in scope for this audit
	ExpectationOperation = "duplicate_geometry_check"

	// DefaultProgramme is the programme whose membership is flagged in the output
	DefaultProgramme = "open-digital-planning"

	// DefaultDatabase is the data service database holding the register-wide tables
	DefaultDatabase = "digital-land"
)

// Output constants
const (
	// OutputArtifact is the file name of the reconciled output table
	OutputArtifact = "duplicate_entity_expectation.csv"

	// DefaultOutputDir is where the artifact lands when no directory is given
	DefaultOutputDir = "output"
)
