package organisation

import (
	"context"

	"github.com/openplanning/dupaudit/pkg/errors"
	"github.com/openplanning/dupaudit/pkg/logging"
	"github.com/openplanning/dupaudit/pkg/tabular"
)

// Lookup maps (dataset, entity id) to an organisation code through the
// externally maintained per-dataset lookup tables. The lookup is often
// more current than the entity table's own organisation field, so the
// reconciler resolves it independently and keeps both values.
type Lookup struct {
	byDataset map[string]map[int64]string
}

// NewLookup creates an empty lookup index.
func NewLookup() *Lookup {
	return &Lookup{byDataset: make(map[string]map[int64]string)}
}

// Add indexes one dataset's lookup table, which exposes
// {organisation, entity}. Lookup tables accumulate rows across versions
// and the same entity id can map to different organisations; the first
// occurrence wins, in table order.
func (l *Lookup) Add(ctx context.Context, dataset string, table *tabular.Table) error {
	if missing := table.MissingColumns("organisation", "entity"); missing != nil {
		return errors.NewSchemaError("lookup/"+dataset, missing)
	}

	entries := l.byDataset[dataset]
	if entries == nil {
		entries = make(map[int64]string, table.Len())
		l.byDataset[dataset] = entries
	}

	duplicates := 0
	for i := 0; i < table.Len(); i++ {
		id := tabular.ParseInt(table.Get(i, "entity"))
		if id == nil {
			continue
		}
		if _, exists := entries[*id]; exists {
			duplicates++
			continue
		}
		entries[*id] = table.Get(i, "organisation")
	}

	if duplicates > 0 {
		logging.FromContext(ctx).Debug().
			Str("dataset", dataset).
			Int("duplicates", duplicates).
			Msg("duplicate entity keys in lookup table, kept first occurrence")
	}

	return nil
}

// Resolve returns the organisation code for an entity, consulting only
// the named dataset's table.
func (l *Lookup) Resolve(dataset string, entity int64) (string, bool) {
	entries, ok := l.byDataset[dataset]
	if !ok {
		return "", false
	}
	code, ok := entries[entity]
	return code, ok
}

// Len returns the number of indexed entries for a dataset.
func (l *Lookup) Len(dataset string) int {
	return len(l.byDataset[dataset])
}
