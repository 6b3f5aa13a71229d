package detect

import (
	"cmp"
	"slices"

	"github.com/codeGROOVE-dev/firmpath/pkg/relation"
	"github.com/codeGROOVE-dev/firmpath/pkg/score"
)

// Rank returns a copy of edges ordered by path strength, strongest first.
// Ties keep (organization_id, contact_id) order.
func Rank(edges []relation.Edge) []relation.Edge {
	out := slices.Clone(edges)
	slices.SortStableFunc(out, func(a, b relation.Edge) int {
		if c := cmp.Compare(b.PathStrength, a.PathStrength); c != 0 {
			return c
		}
		if c := cmp.Compare(a.OrganizationID, b.OrganizationID); c != 0 {
			return c
		}
		return cmp.Compare(a.ContactID, b.ContactID)
	})
	return out
}

// CountByOrganization returns the number of edges per organization.
func CountByOrganization(edges []relation.Edge) map[string]int {
	counts := make(map[string]int)
	for _, e := range edges {
		counts[e.OrganizationID]++
	}
	return counts
}

// Bucket groups edges by strength label, preserving input order within each bucket.
func Bucket(edges []relation.Edge) map[relation.Strength][]relation.Edge {
	out := make(map[relation.Strength][]relation.Edge)
	for _, e := range edges {
		s := score.ClassifyStrength(e.PathStrength)
		out[s] = append(out[s], e)
	}
	return out
}
