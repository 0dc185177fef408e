// Package programme derives the set of organisations enrolled in a named
// programme from the register's provision table. Membership is an audit
// flag, not a gate: an unreachable provision source yields an empty set
// and the rest of the reconciliation proceeds.
package programme

import (
	"context"

	"github.com/openplanning/dupaudit/pkg/logging"
	"github.com/openplanning/dupaudit/pkg/tabular"
)

// Membership is the set of organisation codes enrolled in a programme.
type Membership struct {
	programme string
	members   map[string]struct{}
}

// Empty returns a membership with no members, used when the provision
// source is unreachable. Contains is then false for every organisation;
// absence of evidence never blocks the reconciliation.
func Empty(programme string) *Membership {
	return &Membership{programme: programme, members: make(map[string]struct{})}
}

// Build derives membership from a provision table exposing
// {organisation, project}: organisations whose project equals the named
// programme. A table missing either column yields an empty set.
func Build(ctx context.Context, programme string, table *tabular.Table) *Membership {
	m := Empty(programme)

	if missing := table.MissingColumns("organisation", "project"); missing != nil {
		logging.FromContext(ctx).Warn().
			Str("programme", programme).
			Strs("missing", missing).
			Msg("provision table unusable, treating programme membership as empty")
		return m
	}

	for i := 0; i < table.Len(); i++ {
		if table.Get(i, "project") != programme {
			continue
		}
		if org := table.Get(i, "organisation"); org != "" {
			m.members[org] = struct{}{}
		}
	}

	logging.FromContext(ctx).Debug().
		Str("programme", programme).
		Int("members", len(m.members)).
		Msg("built programme membership")
	return m
}

// Programme returns the programme name this membership was built for.
func (m *Membership) Programme() string {
	return m.programme
}

// Contains reports whether an organisation code is enrolled.
func (m *Membership) Contains(organisation string) bool {
	_, ok := m.members[organisation]
	return ok
}

// Len returns the number of enrolled organisations.
func (m *Membership) Len() int {
	return len(m.members)
}
