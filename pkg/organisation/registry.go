// Package organisation resolves organisation identity from two
// independent sources: the register-wide organisation table (the
// authoritative display name for an organisation identifier) and the
// per-dataset lookup tables (a separately maintained entity-to-
// organisation mapping). The two are deliberately never merged; they
// answer different questions and the audit keeps both opinions visible.
package organisation

import (
	"context"

	"github.com/openplanning/dupaudit/pkg/errors"
	"github.com/openplanning/dupaudit/pkg/logging"
	"github.com/openplanning/dupaudit/pkg/tabular"
)

// Registry maps an organisation identifier to its display name.
type Registry struct {
	names map[int64]string
}

// BuildRegistry constructs the registry from the global organisation
// table, which exposes {entity, name}. The table is contractually keyed
// by entity; a repeated key is a contract violation guarded by keeping
// the first occurrence and logging the collision.
func BuildRegistry(ctx context.Context, table *tabular.Table) (*Registry, error) {
	if missing := table.MissingColumns("entity", "name"); missing != nil {
		return nil, errors.NewSchemaError("organisation", missing)
	}

	log := logging.FromContext(ctx)
	names := make(map[int64]string, table.Len())
	collisions := 0
	for i := 0; i < table.Len(); i++ {
		id := tabular.ParseInt(table.Get(i, "entity"))
		if id == nil {
			continue
		}
		if _, exists := names[*id]; exists {
			collisions++
			continue
		}
		names[*id] = table.Get(i, "name")
	}

	if collisions > 0 {
		log.Warn().
			Int("collisions", collisions).
			Msg("duplicate organisation identifiers in registry, kept first occurrence")
	}

	return &Registry{names: names}, nil
}

// EmptyRegistry returns a registry that resolves nothing, used when the
// source could not be loaded in tolerant mode.
func EmptyRegistry() *Registry {
	return &Registry{names: make(map[int64]string)}
}

// Name returns the display name for an organisation identifier.
func (r *Registry) Name(id int64) (string, bool) {
	name, ok := r.names[id]
	return name, ok
}

// Len returns the number of organisations known to the registry.
func (r *Registry) Len() int {
	return len(r.names)
}
