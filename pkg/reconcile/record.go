// Package reconcile joins extracted duplicate-match records against the
// entity catalog, the organisation registry, the per-dataset lookup
// tables, and the programme membership index, producing the reconciled
// audit table. Two independently resolved organisation opinions are kept
// side by side for every pair: the catalog-first resolution with the
// check's own hint as fallback, and the lookup-table resolution. They
// are never collapsed into one field; collapsing them would lose the
// audit trail.
package reconcile

// Side holds the enrichment for one side of a duplicate pair. Pointer
// fields are nil when the catalog join missed; Organisation is the
// audit-stable resolution (catalog organisation when present, otherwise
// the check's organisation reference).
type Side struct {
	Entity           *int64
	Name             *string
	Organisation     *int64
	OrganisationName *string
	EntryDate        *string
	EndDate          *string
	Geometry         *string
}

// Record is one reconciled duplicate pair, immutable after assembly.
type Record struct {
	Dataset   string
	Operation string
	Message   string

	A Side
	B Side

	// The organisation references the detection check reported,
	// retained verbatim for audit.
	OrgRefA *int64
	OrgRefB *int64

	// Lookup-table-derived organisation codes, resolved independently
	// of the catalog chain.
	LookupOrgA *string
	LookupOrgB *string

	// SameOrganisation compares the lookup-derived codes; two unknowns
	// are not the same organisation.
	SameOrganisation bool

	// InProgramme reports whether side B's lookup organisation is
	// enrolled in the audited programme. Side B is the candidate under
	// scrutiny; side A is the reference entity.
	InProgramme bool
}

// Result is the assembled output table plus the enrichment provenance
// the artifact writer needs to decide which optional column groups to
// emit.
type Result struct {
	Records []Record

	// CatalogEnriched is true when the entity catalog contributed at
	// least one dataset; the per-side enrichment columns exist only
	// in that case.
	CatalogEnriched bool

	// LookupEnriched is true when at least one record resolved a
	// lookup-table organisation.
	LookupEnriched bool
}
