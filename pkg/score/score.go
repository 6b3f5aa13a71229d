// Package score computes time-decayed path strength for relationship edges.
package score

import (
	"math"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/firmpath/pkg/relation"
)

// Strength label boundaries, inclusive on the lower bound.
const (
	StrongThreshold = 0.7
	MediumThreshold = 0.4
)

var baseStrength = map[relation.RelationshipType]float64{
	relation.WorksAt:             1.0,
	relation.FormerColleague:     0.7,
	relation.KnowsDecisionMaker:  0.6,
	relation.IndustryOverlap:     0.3,
	relation.GeographicProximity: 0.2,
}

// dateLayouts are tried in order when reading a connection date.
var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	"02 Jan 2006", // LinkedIn connections export
	"2 Jan 2006",
	"Jan 2 2006",
	"Jan 2, 2006",
	"01/02/2006",
}

// Base returns the base strength for a relationship type, 0 for unknown types.
func Base(t relation.RelationshipType) float64 {
	return baseStrength[t]
}

// RecencyMultiplier scales base strength by how long ago a connection was made.
// Future dates (negative days) count as recent.
func RecencyMultiplier(days int) float64 {
	switch {
	case days < 30:
		return 1.2
	case days < 90:
		return 1.0
	case days < 365:
		return 0.9
	default:
		return 0.8
	}
}

// ClassifyStrength buckets a path strength for display.
func ClassifyStrength(score float64) relation.Strength {
	switch {
	case score >= StrongThreshold:
		return relation.Strong
	case score >= MediumThreshold:
		return relation.Medium
	default:
		return relation.Weak
	}
}

// ParseDate reads a calendar date in any supported layout.
// The result is midnight UTC of the date as written; a timestamp's offset does not
// move it to another day.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return midnight(t), true
		}
	}
	return time.Time{}, false
}

// Scorer computes path strength relative to a clock.
type Scorer struct {
	now func() time.Time
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithClock sets the time source used for recency.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) { s.now = now }
}

// New creates a Scorer using the wall clock unless overridden.
func New(opts ...Option) *Scorer {
	s := &Scorer{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Multiplier returns the recency multiplier for a raw connection date.
// Missing or unparseable dates yield the neutral 1.0.
func (s *Scorer) Multiplier(connectedOn string) float64 {
	d, ok := ParseDate(connectedOn)
	if !ok {
		return 1.0
	}
	days := int(midnight(s.now()).Sub(d).Hours() / 24)
	return RecencyMultiplier(days)
}

// Score returns min(base * recency, 1) in [0, 1], rounded to four decimal places.
func (s *Scorer) Score(t relation.RelationshipType, connectedOn string) float64 {
	v := Base(t) * s.Multiplier(connectedOn)
	v = math.Round(v*1e4) / 1e4
	return min(max(v, 0), 1)
}

// Score scores against the wall clock.
func Score(t relation.RelationshipType, connectedOn string) float64 {
	return New().Score(t, connectedOn)
}

// midnight keeps t's calendar date in its own zone.
func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
