package expectation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openplanning/dupaudit/pkg/tabular"
)

func expectationTable(rows [][]string) *tabular.Table {
	return tabular.New("expectation", []string{"dataset", "operation", "details"}, rows)
}

func TestExtract(t *testing.T) {
	table := expectationTable([][]string{
		{"conservation-area", "duplicate_geometry_check",
			`{"complete_matches": [{"entity_a": 100, "organisation_entity_a": 7, "entity_b": 200, "organisation_entity_b": 9}],
			  "single_matches": [{"entity_a": 300, "entity_b": 400}]}`},
		{"tree", "duplicate_geometry_check",
			`{"single_matches": [{"entity_a": "500", "organisation_entity_a": "11", "entity_b": 600}]}`},
	})

	records := Extract(context.Background(), table)
	require.Len(t, records, 3)

	// Row order, then complete before single within a row.
	assert.Equal(t, KindComplete, records[0].Kind)
	assert.Equal(t, "conservation-area", records[0].Dataset)
	assert.Equal(t, int64(100), *records[0].EntityA)
	assert.Equal(t, int64(7), *records[0].OrgRefA)
	assert.Equal(t, int64(200), *records[0].EntityB)
	assert.Equal(t, int64(9), *records[0].OrgRefB)

	assert.Equal(t, KindSingle, records[1].Kind)
	assert.Equal(t, int64(300), *records[1].EntityA)
	assert.Nil(t, records[1].OrgRefA)
	assert.Nil(t, records[1].OrgRefB)

	// String-typed identifiers coerce.
	assert.Equal(t, "tree", records[2].Dataset)
	assert.Equal(t, int64(500), *records[2].EntityA)
	assert.Equal(t, int64(11), *records[2].OrgRefA)
	assert.Nil(t, records[2].OrgRefB)
}

func TestExtractIgnoresOtherOperations(t *testing.T) {
	table := expectationTable([][]string{
		{"tree", "count_deleted_entities", `{"entities": [1, 2, 3]}`},
		{"tree", "duplicate_geometry_check", `{"complete_matches": [{"entity_a": 1, "entity_b": 2}]}`},
	})

	records := Extract(context.Background(), table)
	require.Len(t, records, 1)
	assert.Equal(t, "duplicate_geometry_check", records[0].Operation)
}

func TestExtractAbsorbsMalformedDetails(t *testing.T) {
	table := expectationTable([][]string{
		{"tree", "duplicate_geometry_check", `not json at all`},
		{"tree", "duplicate_geometry_check", ``},
		{"tree", "duplicate_geometry_check", `{"complete_matches": "not a list"}`},
		{"tree", "duplicate_geometry_check", `{"complete_matches": [{"entity_a": 1, "entity_b": 2}]}`},
	})

	records := Extract(context.Background(), table)
	require.Len(t, records, 1)
	assert.Equal(t, int64(1), *records[0].EntityA)
}

func TestExtractEmptyTable(t *testing.T) {
	records := Extract(context.Background(), expectationTable(nil))
	assert.Empty(t, records)
}

func TestExtractPreservesInputRowOrder(t *testing.T) {
	table := expectationTable([][]string{
		{"a", "duplicate_geometry_check", `{"single_matches": [{"entity_a": 1, "entity_b": 2}]}`},
		{"b", "duplicate_geometry_check", `{"complete_matches": [{"entity_a": 3, "entity_b": 4}]}`},
	})

	records := Extract(context.Background(), table)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].Dataset)
	assert.Equal(t, "b", records[1].Dataset)
}

func TestExtractDoesNotAssumeDistinctEntities(t *testing.T) {
	// Upstream does not guarantee entity_a != entity_b; both sides survive as-is.
	table := expectationTable([][]string{
		{"tree", "duplicate_geometry_check", `{"complete_matches": [{"entity_a": 9, "entity_b": 9}]}`},
	})

	records := Extract(context.Background(), table)
	require.Len(t, records, 1)
	assert.Equal(t, *records[0].EntityA, *records[0].EntityB)
}
