// Package catalog builds the unioned entity catalog that enriches both
// sides of a duplicate match. Heterogeneous per-dataset entity tables are
// normalized into one lookup keyed by (dataset, entity id).
package catalog

import (
	"context"

	"github.com/openplanning/dupaudit/pkg/errors"
	"github.com/openplanning/dupaudit/pkg/logging"
	"github.com/openplanning/dupaudit/pkg/tabular"
)

// RequiredColumns are the columns a source entity table must expose to be
// admitted into the catalog. A table missing any of them is excluded
// entirely, never partially included.
var RequiredColumns = []string{"entity", "end_date", "entry_date", "geometry", "name", "organisation_entity"}

// Entity is one row of the unioned catalog. Dates and geometry are
// opaque pass-through text. Organisation is the table's own
// organisation identifier, which can be stale or absent; a non-empty
// EndDate means the entity is retired.
type Entity struct {
	Dataset      string
	ID           int64
	Name         string
	EntryDate    string
	EndDate      string
	Geometry     string
	Organisation *int64
}

// Key identifies an entity across datasets. Entity identifiers are
// unique only within their dataset.
type Key struct {
	Dataset string
	Entity  int64
}

// Catalog is the immutable union of all admitted entity tables.
type Catalog struct {
	entities map[Key]Entity
	datasets []string
}

// Lookup returns the entity for (dataset, id) when present.
func (c *Catalog) Lookup(dataset string, id int64) (Entity, bool) {
	e, ok := c.entities[Key{Dataset: dataset, Entity: id}]
	return e, ok
}

// Len returns the number of catalogued entities.
func (c *Catalog) Len() int {
	return len(c.entities)
}

// Empty reports whether no dataset contributed any rows.
func (c *Catalog) Empty() bool {
	return len(c.entities) == 0
}

// Datasets returns the dataset names admitted, in insertion order.
func (c *Catalog) Datasets() []string {
	out := make([]string, len(c.datasets))
	copy(out, c.datasets)
	return out
}

// Builder accumulates per-dataset entity tables into a Catalog.
type Builder struct {
	catalog *Catalog
}

// NewBuilder creates an empty catalog builder.
func NewBuilder() *Builder {
	return &Builder{catalog: &Catalog{entities: make(map[Key]Entity)}}
}

// Add admits one dataset's raw entity table. The dataset name is the
// caller's mapping key and overrides any dataset column the table
// carries. Tables missing required columns are rejected whole with a
// SchemaError; identifier coercion failures null the field or drop the
// unkeyable row but never abort. Duplicate (dataset, entity) keys keep
// the first occurrence.
func (b *Builder) Add(ctx context.Context, dataset string, table *tabular.Table) error {
	log := logging.FromContext(ctx)

	if missing := table.MissingColumns(RequiredColumns...); missing != nil {
		return errors.NewSchemaError("entity/"+dataset, missing)
	}

	added, dropped, collisions := 0, 0, 0
	for i := 0; i < table.Len(); i++ {
		id := tabular.ParseInt(table.Get(i, "entity"))
		if id == nil {
			dropped++
			continue
		}

		key := Key{Dataset: dataset, Entity: *id}
		if _, exists := b.catalog.entities[key]; exists {
			collisions++
			continue
		}

		b.catalog.entities[key] = Entity{
			Dataset:      dataset,
			ID:           *id,
			Name:         table.Get(i, "name"),
			EntryDate:    table.Get(i, "entry_date"),
			EndDate:      table.Get(i, "end_date"),
			Geometry:     table.Get(i, "geometry"),
			Organisation: tabular.ParseInt(table.Get(i, "organisation_entity")),
		}
		added++
	}

	b.catalog.datasets = append(b.catalog.datasets, dataset)

	if collisions > 0 {
		log.Warn().
			Str("dataset", dataset).
			Int("collisions", collisions).
			Msg("duplicate entity keys in source table, kept first occurrence")
	}
	log.Debug().
		Str("dataset", dataset).
		Int("added", added).
		Int("dropped", dropped).
		Msg("catalogued entity table")

	return nil
}

// Catalog returns the accumulated catalog. An empty catalog is valid;
// downstream enrichment simply produces no catalog-derived fields.
func (b *Builder) Catalog() *Catalog {
	return b.catalog
}
