package reconcile

import (
	"context"

	"github.com/openplanning/dupaudit/pkg/catalog"
	"github.com/openplanning/dupaudit/pkg/expectation"
	"github.com/openplanning/dupaudit/pkg/logging"
	"github.com/openplanning/dupaudit/pkg/organisation"
	"github.com/openplanning/dupaudit/pkg/programme"
)

// Inputs carries the fully materialized source tables. The reconciler
// never mutates them; it only derives a new table.
type Inputs struct {
	Matches    []expectation.MatchRecord
	Catalog    *catalog.Catalog
	Registry   *organisation.Registry
	Lookup     *organisation.Lookup
	Membership *programme.Membership
}

// Reconcile assembles one output record per match record, in match
// order. Every join is many-to-one against a deduplicated right side,
// so the row count always equals the match count. Absent sources are
// treated as empty; a fully unenriched result is still valid.
func Reconcile(ctx context.Context, in Inputs) *Result {
	if in.Registry == nil {
		in.Registry = organisation.EmptyRegistry()
	}
	if in.Lookup == nil {
		in.Lookup = organisation.NewLookup()
	}
	if in.Membership == nil {
		in.Membership = programme.Empty("")
	}

	catalogEnriched := in.Catalog != nil && !in.Catalog.Empty()

	result := &Result{
		Records:         make([]Record, 0, len(in.Matches)),
		CatalogEnriched: catalogEnriched,
	}

	for _, m := range in.Matches {
		rec := Record{
			Dataset:   m.Dataset,
			Operation: m.Operation,
			Message:   string(m.Kind),
			OrgRefA:   m.OrgRefA,
			OrgRefB:   m.OrgRefB,
		}

		rec.A = resolveSide(in, m.Dataset, m.EntityA, m.OrgRefA)
		rec.B = resolveSide(in, m.Dataset, m.EntityB, m.OrgRefB)

		rec.LookupOrgA = resolveLookup(in.Lookup, m.Dataset, m.EntityA)
		rec.LookupOrgB = resolveLookup(in.Lookup, m.Dataset, m.EntityB)
		if rec.LookupOrgA != nil || rec.LookupOrgB != nil {
			result.LookupEnriched = true
		}

		// Two unresolved organisations are not evidence of sameness.
		rec.SameOrganisation = rec.LookupOrgA != nil && rec.LookupOrgB != nil &&
			*rec.LookupOrgA == *rec.LookupOrgB

		rec.InProgramme = rec.LookupOrgB != nil && in.Membership.Contains(*rec.LookupOrgB)

		result.Records = append(result.Records, rec)
	}

	logging.FromContext(ctx).Info().
		Int("matches", len(in.Matches)).
		Bool("catalog_enriched", result.CatalogEnriched).
		Bool("lookup_enriched", result.LookupEnriched).
		Msg("reconciled duplicate matches")

	return result
}

// resolveSide enriches one side of a pair from the catalog and registry.
// The organisation resolution is catalog-first: the catalog's
// organisation wins when present, the check's own reference otherwise.
// The display name resolves from the catalog-derived organisation only;
// the fallback reference is a hint, not an identity the registry is
// asked to vouch for.
func resolveSide(in Inputs, dataset string, entity, orgRef *int64) Side {
	side := Side{Entity: entity, Organisation: orgRef}

	if entity == nil || in.Catalog == nil {
		return side
	}
	e, ok := in.Catalog.Lookup(dataset, *entity)
	if !ok {
		return side
	}

	side.Name = ptr(e.Name)
	side.EntryDate = ptr(e.EntryDate)
	side.EndDate = ptr(e.EndDate)
	side.Geometry = ptr(e.Geometry)

	if e.Organisation != nil {
		side.Organisation = e.Organisation
		if name, ok := in.Registry.Name(*e.Organisation); ok {
			side.OrganisationName = ptr(name)
		}
	}

	return side
}

// resolveLookup consults only the match's own dataset's lookup table.
func resolveLookup(l *organisation.Lookup, dataset string, entity *int64) *string {
	if entity == nil {
		return nil
	}
	code, ok := l.Resolve(dataset, *entity)
	if !ok {
		return nil
	}
	return &code
}

func ptr(s string) *string { return &s }
