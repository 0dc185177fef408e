package dupaudit

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openplanning/dupaudit/internal/datasette"
	"github.com/openplanning/dupaudit/pkg/constants"
	"github.com/openplanning/dupaudit/pkg/errors"
)

// fixtureServer serves a minimal register: one dataset, two catalogued
// entities, a lookup table placing both under the same organisation,
// and a provision table enrolling that organisation in the programme.
func fixtureServer(t *testing.T) *httptest.Server {
	t.Helper()

	details := `{"complete_matches": [{"entity_a": 101, "organisation_entity_a": 10, "entity_b": 202, "organisation_entity_b": 20}], "single_matches": [{"entity_a": 101, "entity_b": 303}]}`

	mux := http.NewServeMux()
	mux.HandleFunc("/digital-land/expectation.csv", func(w http.ResponseWriter, r *http.Request) {
		cw := csv.NewWriter(w)
		cw.Write([]string{"dataset", "operation", "details"})
		cw.Write([]string{"conservation-area", "duplicate_geometry_check", details})
		cw.Write([]string{"conservation-area", "count_deleted_entities", "{}"})
		cw.Flush()
	})
	mux.HandleFunc("/conservation-area/entity.csv", func(w http.ResponseWriter, r *http.Request) {
		cw := csv.NewWriter(w)
		cw.Write([]string{"entity", "name", "entry_date", "end_date", "geometry", "organisation_entity"})
		cw.Write([]string{"101", "Abbey Quarter", "2023-01-15", "", "MULTIPOLYGON(((0 0)))", "600001"})
		cw.Write([]string{"202", "Abbey Quarter CA", "2024-06-02", "", "MULTIPOLYGON(((0 1)))", ""})
		cw.Flush()
	})
	mux.HandleFunc("/conservation-area/lookup.csv", func(w http.ResponseWriter, r *http.Request) {
		cw := csv.NewWriter(w)
		cw.Write([]string{"entity", "organisation"})
		cw.Write([]string{"101", "local-authority:BOR"})
		cw.Write([]string{"202", "local-authority:BOR"})
		cw.Flush()
	})
	mux.HandleFunc("/digital-land/organisation.csv", func(w http.ResponseWriter, r *http.Request) {
		cw := csv.NewWriter(w)
		cw.Write([]string{"entity", "name"})
		cw.Write([]string{"600001", "Borchester District Council"})
		cw.Flush()
	})
	mux.HandleFunc("/digital-land.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"organisation": "local-authority:BOR", "project": "open-digital-planning"}]`)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testSources(baseURL string) *Sources {
	s := DefaultSources()
	s.BaseURL = baseURL
	s.Datasets = []string{"conservation-area"}
	return s
}

func readArtifact(t *testing.T, dir string) [][]string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, constants.OutputArtifact))
	require.NoError(t, err)
	if len(data) == 0 {
		return nil
	}
	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestPipelineRun(t *testing.T) {
	server := fixtureServer(t)

	pipeline, err := New(WithSources(testSources(server.URL)))
	require.NoError(t, err)

	outputDir := t.TempDir()
	report, err := pipeline.Run(context.Background(), outputDir)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Matches)
	assert.Equal(t, []string{"conservation-area"}, report.DatasetsCatalogued)
	assert.Empty(t, report.DatasetsSkipped)

	rows := readArtifact(t, outputDir)
	require.Len(t, rows, 3)

	header := rows[0]
	assert.Equal(t, report.Columns, header)
	assert.Contains(t, header, "entity_a_geometry")
	assert.Contains(t, header, "lookup_organisation_b")

	cell := func(row []string, column string) string {
		for i, name := range header {
			if name == column {
				return row[i]
			}
		}
		t.Fatalf("column %q not in artifact", column)
		return ""
	}

	complete := rows[1]
	assert.Equal(t, "conservation-area", cell(complete, "dataset"))
	assert.Equal(t, "duplicate_geometry_check", cell(complete, "operation"))
	assert.Equal(t, "complete_match", cell(complete, "message"))
	assert.Equal(t, "101", cell(complete, "entity_a"))
	assert.Equal(t, "Abbey Quarter", cell(complete, "entity_a_name"))
	assert.Equal(t, "600001", cell(complete, "entity_a_organisation"))
	assert.Equal(t, "Borchester District Council", cell(complete, "entity_a_organisation_name"))

	// Side B has no catalog organisation, so the check's reference
	// stands in and no display name resolves.
	assert.Equal(t, "20", cell(complete, "entity_b_organisation"))
	assert.Equal(t, "", cell(complete, "entity_b_organisation_name"))

	assert.Equal(t, "10", cell(complete, "organisation_entity_a"))
	assert.Equal(t, "local-authority:BOR", cell(complete, "lookup_organisation_a"))
	assert.Equal(t, "local-authority:BOR", cell(complete, "lookup_organisation_b"))
	assert.Equal(t, "true", cell(complete, "same_organisation"))
	assert.Equal(t, "true", cell(complete, "in_programme"))

	single := rows[2]
	assert.Equal(t, "single_match", cell(single, "message"))
	assert.Equal(t, "303", cell(single, "entity_b"))
	assert.Equal(t, "", cell(single, "entity_b_name"))
	assert.Equal(t, "", cell(single, "lookup_organisation_b"))
	assert.Equal(t, "false", cell(single, "same_organisation"))
	assert.Equal(t, "false", cell(single, "in_programme"))
}

func TestPipelineRunDeterministic(t *testing.T) {
	server := fixtureServer(t)

	pipeline, err := New(WithSources(testSources(server.URL)))
	require.NoError(t, err)

	dirA, dirB := t.TempDir(), t.TempDir()
	_, err = pipeline.Run(context.Background(), dirA)
	require.NoError(t, err)
	_, err = pipeline.Run(context.Background(), dirB)
	require.NoError(t, err)

	a, err := os.ReadFile(filepath.Join(dirA, constants.OutputArtifact))
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.Join(dirB, constants.OutputArtifact))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPipelineRunNoMatches(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/digital-land/expectation.csv", func(w http.ResponseWriter, r *http.Request) {
		cw := csv.NewWriter(w)
		cw.Write([]string{"dataset", "operation", "details"})
		cw.Flush()
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	pipeline, err := New(WithSources(testSources(server.URL)))
	require.NoError(t, err)

	outputDir := t.TempDir()
	report, err := pipeline.Run(context.Background(), outputDir)
	require.NoError(t, err)
	assert.Zero(t, report.Matches)

	data, err := os.ReadFile(report.ArtifactPath)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestPipelineRunTolerantDegrades(t *testing.T) {
	// Only the expectation table is reachable; every enrichment source
	// 404s. The artifact must still carry every match at full width of
	// the surviving column groups.
	mux := http.NewServeMux()
	mux.HandleFunc("/digital-land/expectation.csv", func(w http.ResponseWriter, r *http.Request) {
		cw := csv.NewWriter(w)
		cw.Write([]string{"dataset", "operation", "details"})
		cw.Write([]string{"tree", "duplicate_geometry_check", `{"single_matches": [{"entity_a": 1, "entity_b": 2}]}`})
		cw.Flush()
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	sources := testSources(server.URL)
	sources.Datasets = []string{"tree"}

	pipeline, err := New(WithSources(sources))
	require.NoError(t, err)

	outputDir := t.TempDir()
	report, err := pipeline.Run(context.Background(), outputDir)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Matches)
	assert.Equal(t, []string{"tree"}, report.DatasetsSkipped)
	assert.Empty(t, report.DatasetsCatalogued)

	rows := readArtifact(t, outputDir)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{
		"dataset", "operation", "message", "entity_a", "entity_b",
		"organisation_entity_a", "organisation_entity_b",
		"same_organisation", "in_programme",
	}, rows[0])
}

func TestPipelineRunStrictAborts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/digital-land/expectation.csv", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	pipeline, err := New(WithSources(testSources(server.URL)), WithStrict(true))
	require.NoError(t, err)

	outputDir := t.TempDir()
	_, err = pipeline.Run(context.Background(), outputDir)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	_, statErr := os.Stat(filepath.Join(outputDir, constants.OutputArtifact))
	assert.True(t, os.IsNotExist(statErr))
}

func TestPipelineRunStrictSourceFailure(t *testing.T) {
	server := fixtureServer(t)

	// Reuse the fixture but point one dataset at a table the server
	// does not have; strict mode must abort without an artifact.
	sources := testSources(server.URL)
	sources.Datasets = append(sources.Datasets, "article-4-direction-area")

	pipeline, err := New(WithSources(sources), WithStrict(true))
	require.NoError(t, err)

	outputDir := t.TempDir()
	_, err = pipeline.Run(context.Background(), outputDir)
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(outputDir, constants.OutputArtifact))
	assert.True(t, os.IsNotExist(statErr))
}

func TestPipelineRunValidatesOutputDir(t *testing.T) {
	pipeline, err := New()
	require.NoError(t, err)

	_, err = pipeline.Run(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestLoadSourcesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte("datasets:\n  - tree\n"), 0o644))

	s, err := LoadSources(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"tree"}, s.Datasets)
	assert.Equal(t, datasette.DefaultBaseURL, s.BaseURL)
	assert.Equal(t, constants.DefaultProgramme, s.Programme)
	assert.Equal(t, constants.DefaultDatabase, s.Database)
}

func TestLoadSourcesMissingFile(t *testing.T) {
	_, err := LoadSources(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
