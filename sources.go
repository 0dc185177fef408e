package dupaudit

import (
	"os"

	"github.com/goccy/go-yaml"

	"github.com/openplanning/dupaudit/internal/datasette"
	"github.com/openplanning/dupaudit/pkg/constants"
	"github.com/openplanning/dupaudit/pkg/errors"
)

// Sources names the remote tables the pipeline reads. Dataset identity
// is always taken from this configuration, never from the tables
// themselves. URL maps override the default per-table export URLs for
// deployments that serve lookups from elsewhere.
type Sources struct {
	// BaseURL is the data service root.
	BaseURL string `yaml:"base_url"`

	// Database is the service database holding the register-wide
	// tables (expectation, organisation, provision).
	Database string `yaml:"database"`

	// Datasets are the per-dataset entity tables to catalogue, in a
	// fixed order that also fixes output determinism.
	Datasets []string `yaml:"datasets"`

	// EntityURLs optionally overrides the entity export URL per dataset.
	EntityURLs map[string]string `yaml:"entity_urls"`

	// LookupURLs optionally overrides the lookup export URL per dataset.
	LookupURLs map[string]string `yaml:"lookup_urls"`

	// ExpectationURL optionally overrides the expectation export URL.
	ExpectationURL string `yaml:"expectation_url"`

	// OrganisationURL optionally overrides the organisation export URL.
	OrganisationURL string `yaml:"organisation_url"`

	// Programme is the programme whose membership is flagged.
	Programme string `yaml:"programme"`
}

// DefaultSources returns the source set for the public register.
func DefaultSources() *Sources {
	return &Sources{
		BaseURL:  datasette.DefaultBaseURL,
		Database: constants.DefaultDatabase,
		Datasets: []string{
			"conservation-area",
			"article-4-direction-area",
			"listed-building-outline",
			"tree-preservation-zone",
			"tree",
		},
		Programme: constants.DefaultProgramme,
	}
}

// LoadSources reads a YAML sources file, filling unset fields from the
// defaults.
func LoadSources(path string) (*Sources, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}

	s := DefaultSources()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}

	defaults := DefaultSources()
	if s.BaseURL == "" {
		s.BaseURL = defaults.BaseURL
	}
	if s.Database == "" {
		s.Database = defaults.Database
	}
	if len(s.Datasets) == 0 {
		s.Datasets = defaults.Datasets
	}
	if s.Programme == "" {
		s.Programme = defaults.Programme
	}
	return s, nil
}

// expectationURL resolves the expectation table export URL.
func (s *Sources) expectationURL(c *datasette.Client) string {
	if s.ExpectationURL != "" {
		return s.ExpectationURL
	}
	return c.TableURL(s.Database, "expectation")
}

// organisationURL resolves the organisation table export URL.
func (s *Sources) organisationURL(c *datasette.Client) string {
	if s.OrganisationURL != "" {
		return s.OrganisationURL
	}
	return c.TableURL(s.Database, "organisation")
}

// entityURL resolves a dataset's entity table export URL.
func (s *Sources) entityURL(c *datasette.Client, dataset string) string {
	if url, ok := s.EntityURLs[dataset]; ok {
		return url
	}
	return c.TableURL(dataset, "entity")
}

// lookupURL resolves a dataset's lookup table export URL.
func (s *Sources) lookupURL(c *datasette.Client, dataset string) string {
	if url, ok := s.LookupURLs[dataset]; ok {
		return url
	}
	return c.TableURL(dataset, "lookup")
}
