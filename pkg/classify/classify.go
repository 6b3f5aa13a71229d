// Package classify maps match signals to a relationship type.
package classify

import "github.com/codeGROOVE-dev/firmpath/pkg/relation"

// WorksAtThreshold is the minimum name similarity for a current-employee match.
const WorksAtThreshold = 0.8

// Signals are the facts known about one contact/organization pair.
type Signals struct {
	Similarity         float64 // Name similarity in [0, 1]
	HasCurrentPosition bool    // Contact lists a current title
}

// Rule inspects signals and returns a type when it applies.
type Rule func(Signals) (relation.RelationshipType, bool)

// Classifier evaluates rules in order and falls back to a fixed type, so it
// always returns a value.
type Classifier struct {
	fallback relation.RelationshipType
	rules    []Rule
}

// New returns a classifier with the given rules and fallback.
func New(fallback relation.RelationshipType, rules ...Rule) *Classifier {
	return &Classifier{fallback: fallback, rules: rules}
}

// Default returns the company-match policy: works_at for a strong name match with a
// current position, industry_overlap for everything else.
func Default() *Classifier {
	return New(relation.IndustryOverlap, WorksAt)
}

// WorksAt applies when the names match closely and the contact holds a current position.
func WorksAt(s Signals) (relation.RelationshipType, bool) {
	if s.Similarity >= WorksAtThreshold && s.HasCurrentPosition {
		return relation.WorksAt, true
	}
	return "", false
}

// Classify returns the first matching rule's type, or the fallback.
func (c *Classifier) Classify(s Signals) relation.RelationshipType {
	for _, r := range c.rules {
		if t, ok := r(s); ok && t.Valid() {
			return t
		}
	}
	return c.fallback
}

// Classify applies the default policy.
func Classify(similarity float64, hasCurrentPosition bool) relation.RelationshipType {
	return defaultClassifier.Classify(Signals{Similarity: similarity, HasCurrentPosition: hasCurrentPosition})
}

var defaultClassifier = Default()
