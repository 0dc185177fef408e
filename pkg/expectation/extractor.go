// Package expectation extracts pairwise duplicate-match records from the
// register's expectation table. Each in-scope expectation row carries an
// encoded details payload listing the candidate duplicate pairs the
// upstream geometry check found.
package expectation

import (
	"context"
	"encoding/json"

	"github.com/openplanning/dupaudit/pkg/constants"
	"github.com/openplanning/dupaudit/pkg/logging"
	"github.com/openplanning/dupaudit/pkg/tabular"
)

// MatchKind classifies how closely the two entities of a pair align.
type MatchKind string

const (
	// KindComplete means both geometry and attributes align.
	KindComplete MatchKind = "complete_match"

	// KindSingle means partial or geometry-only alignment.
	KindSingle MatchKind = "single_match"
)

// MatchRecord is one candidate duplicate pair reported by the check.
// Entity identifiers are unique only within Dataset. The organisation
// references are the check's own hints and may be stale; the reconciler
// treats them as a fallback, not ground truth.
type MatchRecord struct {
	Dataset   string
	Operation string
	Kind      MatchKind

	EntityA *int64
	EntityB *int64
	OrgRefA *int64
	OrgRefB *int64
}

// details is the decoded shape of an expectation row's payload. Both
// lists are optional; elements may carry any subset of the pair fields.
type details struct {
	CompleteMatches []rawMatch `json:"complete_matches"`
	SingleMatches   []rawMatch `json:"single_matches"`
}

// rawMatch keeps fields loosely typed: payloads serialize identifiers
// as numbers or strings depending on the producing check's version.
type rawMatch struct {
	EntityA             any `json:"entity_a"`
	OrganisationEntityA any `json:"organisation_entity_a"`
	EntityB             any `json:"entity_b"`
	OrganisationEntityB any `json:"organisation_entity_b"`
}

// Extract parses the expectation table into a flat, ordered sequence of
// match records. Only rows whose operation is the duplicate-geometry
// check are considered. A row whose details payload fails to decode
// contributes zero records; expectation payloads are externally produced
// and not contractually well-formed, so decode failure is absorbed, not
// propagated. Ordering is stable: input row order, complete matches
// before single matches within a row, list order within each kind.
func Extract(ctx context.Context, table *tabular.Table) []MatchRecord {
	log := logging.FromContext(ctx)

	var records []MatchRecord
	for i := 0; i < table.Len(); i++ {
		operation := table.Get(i, "operation")
		if operation != constants.ExpectationOperation {
			continue
		}
		dataset := table.Get(i, "dataset")

		var payload details
		if err := json.Unmarshal([]byte(table.Get(i, "details")), &payload); err != nil {
			log.Debug().
				Str("dataset", dataset).
				Int("row", i).
				Err(err).
				Msg("dropping expectation row with undecodable details")
			continue
		}

		for _, m := range payload.CompleteMatches {
			records = append(records, newRecord(dataset, operation, KindComplete, m))
		}
		for _, m := range payload.SingleMatches {
			records = append(records, newRecord(dataset, operation, KindSingle, m))
		}
	}

	return records
}

// newRecord coerces a raw match element. Missing or unparseable
// identifiers become nil, never an error.
func newRecord(dataset, operation string, kind MatchKind, m rawMatch) MatchRecord {
	return MatchRecord{
		Dataset:   dataset,
		Operation: operation,
		Kind:      kind,
		EntityA:   tabular.CoerceNumber(m.EntityA),
		EntityB:   tabular.CoerceNumber(m.EntityB),
		OrgRefA:   tabular.CoerceNumber(m.OrganisationEntityA),
		OrgRefB:   tabular.CoerceNumber(m.OrganisationEntityB),
	}
}
