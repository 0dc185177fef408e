// Package dupaudit reconciles duplicate-geometry expectations reported
// against a planning-data register into an analyst-ready audit table.
// The pipeline fetches the expectation table, the per-dataset entity
// tables, the organisation registry, the per-dataset lookup tables, and
// the programme provision table, then joins them into one row per
// candidate duplicate pair. See the reconcile package for the join and
// fallback semantics.
package dupaudit

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/openplanning/dupaudit/internal/datasette"
	"github.com/openplanning/dupaudit/pkg/catalog"
	"github.com/openplanning/dupaudit/pkg/constants"
	"github.com/openplanning/dupaudit/pkg/errors"
	"github.com/openplanning/dupaudit/pkg/expectation"
	"github.com/openplanning/dupaudit/pkg/logging"
	"github.com/openplanning/dupaudit/pkg/organisation"
	"github.com/openplanning/dupaudit/pkg/programme"
	"github.com/openplanning/dupaudit/pkg/reconcile"
	"github.com/openplanning/dupaudit/pkg/tabular"
)

// Pipeline runs the duplicate-geometry reconciliation end to end. It is
// stateless between runs: given identical upstream data, two runs
// produce byte-identical artifacts.
type Pipeline struct {
	cfg *config
}

// Report summarizes a completed run.
type Report struct {
	// ArtifactPath is where the output table was written.
	ArtifactPath string

	// Matches is the number of duplicate pairs reconciled.
	Matches int

	// Columns is the artifact's column set, in output order.
	Columns []string

	// DatasetsCatalogued lists the entity tables admitted to the catalog.
	DatasetsCatalogued []string

	// DatasetsSkipped lists the entity tables excluded, whether for
	// transport failure or missing required columns.
	DatasetsSkipped []string
}

// New creates a Pipeline with the given options.
func New(opts ...Option) (*Pipeline, error) {
	cfg := &config{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.sources == nil {
		cfg.sources = DefaultSources()
	}
	if cfg.client == nil {
		cfg.client = datasette.New(cfg.sources.BaseURL)
	}
	if cfg.logger == nil {
		cfg.logger = logging.Default()
	}
	return &Pipeline{cfg: cfg}, nil
}

// Run executes the pipeline and writes the artifact into outputDir.
// In strict mode any transport failure aborts before the artifact is
// written; in tolerant mode failed sources are logged and treated as
// empty, and the artifact is still complete and correctly shaped.
func (p *Pipeline) Run(ctx context.Context, outputDir string) (*Report, error) {
	if outputDir == "" {
		return nil, errors.NewValidationError("output_dir", outputDir, "must not be empty")
	}

	ctx = logging.WithLogger(ctx, p.cfg.logger)
	log := p.cfg.logger
	client := p.cfg.client
	sources := p.cfg.sources

	// The expectation table gates everything else: no matches means no
	// joins, and the artifact is an empty deliverable rather than a
	// missing one.
	expTable, err := client.FetchCSV(ctx, "expectation", sources.expectationURL(client))
	if err != nil {
		if p.cfg.strict {
			return nil, err
		}
		log.Warn().Err(err).Msg("expectation table unavailable, emitting empty artifact")
		expTable = tabular.New("expectation", nil, nil)
	}

	matches := expectation.Extract(ctx, expTable)
	log.Info().Int("matches", len(matches)).Msg("extracted duplicate matches")

	if len(matches) == 0 {
		return p.finish(ctx, outputDir, reconcile.Reconcile(ctx, reconcile.Inputs{}), nil, nil)
	}

	fetched, err := p.fetchSources(ctx)
	if err != nil {
		return nil, err
	}

	in, catalogued, skipped := p.assemble(ctx, matches, fetched)
	return p.finish(ctx, outputDir, reconcile.Reconcile(ctx, in), catalogued, skipped)
}

// fetchedSources holds the raw tables from the concurrent fetch phase.
// Slices are indexed by the sources' dataset order; a nil table means
// that fetch failed in tolerant mode.
type fetchedSources struct {
	entities  []*tabular.Table
	lookups   []*tabular.Table
	orgs      *tabular.Table
	provision *tabular.Table
}

// fetchSources downloads all independent source tables concurrently.
// They have no data dependency on each other; the joins wait for all of
// them. In strict mode the first failure cancels the group.
func (p *Pipeline) fetchSources(ctx context.Context) (*fetchedSources, error) {
	sources := p.cfg.sources
	client := p.cfg.client
	log := p.cfg.logger

	fetched := &fetchedSources{
		entities: make([]*tabular.Table, len(sources.Datasets)),
		lookups:  make([]*tabular.Table, len(sources.Datasets)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(constants.MaxConcurrentFetches)

	// tolerate logs and absorbs an error unless the run is strict.
	tolerate := func(source string, err error) error {
		if err == nil {
			return nil
		}
		if p.cfg.strict {
			return err
		}
		log.Warn().Err(err).Str("source", source).Msg("source unavailable, continuing without it")
		return nil
	}

	for i, dataset := range sources.Datasets {
		i, dataset := i, dataset
		g.Go(func() error {
			table, err := client.FetchCSV(gctx, "entity/"+dataset, sources.entityURL(client, dataset))
			if err != nil {
				return tolerate("entity/"+dataset, err)
			}
			fetched.entities[i] = table
			return nil
		})
		g.Go(func() error {
			table, err := client.FetchCSV(gctx, "lookup/"+dataset, sources.lookupURL(client, dataset))
			if err != nil {
				return tolerate("lookup/"+dataset, err)
			}
			fetched.lookups[i] = table
			return nil
		})
	}

	g.Go(func() error {
		table, err := client.FetchCSV(gctx, "organisation", sources.organisationURL(client))
		if err != nil {
			return tolerate("organisation", err)
		}
		fetched.orgs = table
		return nil
	})

	// Programme membership defaults to false under failure, even in
	// strict mode: absence of enrollment evidence is not a transport
	// fault worth failing an audit for.
	g.Go(func() error {
		table, err := client.Query(gctx, sources.Database,
			"select organisation, project from provision")
		if err != nil {
			log.Warn().Err(err).Msg("provision table unavailable, programme membership defaults to false")
			return nil
		}
		fetched.provision = table
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return fetched, nil
}

// assemble builds the reconciler inputs from the fetched tables. Tables
// with missing required columns are excluded whole here; that is a
// schema-class failure and never fatal, in either fetch policy.
func (p *Pipeline) assemble(ctx context.Context, matches []expectation.MatchRecord, fetched *fetchedSources) (reconcile.Inputs, []string, []string) {
	sources := p.cfg.sources
	log := p.cfg.logger

	builder := catalog.NewBuilder()
	lookup := organisation.NewLookup()
	var catalogued, skipped []string

	for i, dataset := range sources.Datasets {
		if fetched.entities[i] == nil {
			skipped = append(skipped, dataset)
		} else if err := builder.Add(ctx, dataset, fetched.entities[i]); err != nil {
			log.Warn().Err(err).Str("dataset", dataset).Msg("excluding entity table from catalog")
			skipped = append(skipped, dataset)
		} else {
			catalogued = append(catalogued, dataset)
		}

		if fetched.lookups[i] != nil {
			if err := lookup.Add(ctx, dataset, fetched.lookups[i]); err != nil {
				log.Warn().Err(err).Str("dataset", dataset).Msg("excluding lookup table")
			}
		}
	}

	registry := organisation.EmptyRegistry()
	if fetched.orgs != nil {
		built, err := organisation.BuildRegistry(ctx, fetched.orgs)
		if err != nil {
			log.Warn().Err(err).Msg("organisation registry unusable, names will not resolve")
		} else {
			registry = built
		}
	}

	membership := programme.Empty(sources.Programme)
	if fetched.provision != nil {
		membership = programme.Build(ctx, sources.Programme, fetched.provision)
	}

	return reconcile.Inputs{
		Matches:    matches,
		Catalog:    builder.Catalog(),
		Registry:   registry,
		Lookup:     lookup,
		Membership: membership,
	}, catalogued, skipped
}

// finish writes the artifact and builds the run report.
func (p *Pipeline) finish(ctx context.Context, outputDir string, result *reconcile.Result, catalogued, skipped []string) (*Report, error) {
	path, err := result.WriteFile(outputDir)
	if err != nil {
		return nil, err
	}

	report := &Report{
		ArtifactPath:       path,
		Matches:            len(result.Records),
		DatasetsCatalogued: catalogued,
		DatasetsSkipped:    skipped,
	}
	if len(result.Records) > 0 {
		report.Columns = result.Columns()
	}

	logging.FromContext(ctx).Info().
		Str("artifact", path).
		Int("rows", report.Matches).
		Msg("wrote duplicate entity expectation artifact")
	return report, nil
}
