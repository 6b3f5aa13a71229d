package score

import (
	"testing"
	"time"

	"github.com/codeGROOVE-dev/firmpath/pkg/relation"
)

var fixedNow = time.Date(2026, time.March, 15, 17, 30, 0, 0, time.UTC)

func daysAgo(n int) string {
	return fixedNow.AddDate(0, 0, -n).Format(time.DateOnly)
}

func TestBase(t *testing.T) {
	want := map[relation.RelationshipType]float64{
		relation.WorksAt:             1.0,
		relation.FormerColleague:     0.7,
		relation.KnowsDecisionMaker:  0.6,
		relation.IndustryOverlap:     0.3,
		relation.GeographicProximity: 0.2,
		"unknown":                    0,
	}
	for rt, w := range want {
		if got := Base(rt); got != w {
			t.Errorf("Base(%q) = %v, want %v", rt, got, w)
		}
	}
}

func TestRecencyMultiplier(t *testing.T) {
	tests := []struct {
		days int
		want float64
	}{
		{-5, 1.2},
		{0, 1.2},
		{29, 1.2},
		{30, 1.0},
		{89, 1.0},
		{90, 0.9},
		{364, 0.9},
		{365, 0.8},
		{4000, 0.8},
	}
	for _, tt := range tests {
		if got := RecencyMultiplier(tt.days); got != tt.want {
			t.Errorf("RecencyMultiplier(%d) = %v, want %v", tt.days, got, tt.want)
		}
	}
}

func TestScore(t *testing.T) {
	s := New(WithClock(func() time.Time { return fixedNow }))

	tests := []struct {
		name string
		rt   relation.RelationshipType
		date string
		want float64
	}{
		{"works at, no date", relation.WorksAt, "", 1.0},
		{"works at, recent is capped", relation.WorksAt, daysAgo(10), 1.0},
		{"works at, two years", relation.WorksAt, daysAgo(730), 0.8},
		{"industry overlap, 400 days", relation.IndustryOverlap, daysAgo(400), 0.24},
		{"industry overlap, recent", relation.IndustryOverlap, daysAgo(3), 0.36},
		{"former colleague, 60 days", relation.FormerColleague, daysAgo(60), 0.7},
		{"decision maker, 100 days", relation.KnowsDecisionMaker, daysAgo(100), 0.54},
		{"geographic, unparseable date", relation.GeographicProximity, "sometime last spring", 0.2},
		{"linkedin layout", relation.IndustryOverlap, fixedNow.AddDate(-2, 0, 0).Format("02 Jan 2006"), 0.24},
		{"rfc3339 layout", relation.IndustryOverlap, fixedNow.AddDate(0, 0, -1).Format(time.RFC3339), 0.36},
		{"future date", relation.IndustryOverlap, fixedNow.AddDate(0, 1, 0).Format(time.DateOnly), 0.36},
		{"unknown type", "unknown", daysAgo(1), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Score(tt.rt, tt.date); got != tt.want {
				t.Errorf("Score(%q, %q) = %v, want %v", tt.rt, tt.date, got, tt.want)
			}
		})
	}
}

func TestScoreBounded(t *testing.T) {
	s := New(WithClock(func() time.Time { return fixedNow }))
	dates := []string{"", "garbage", daysAgo(0), daysAgo(45), daysAgo(200), daysAgo(5000), "2999-01-01"}
	for _, rt := range relation.AllRelationshipTypes() {
		for _, d := range dates {
			if got := s.Score(rt, d); got < 0 || got > 1 {
				t.Errorf("Score(%q, %q) = %v, outside [0, 1]", rt, d, got)
			}
		}
	}
}

func TestScoreRecencyDecreases(t *testing.T) {
	s := New(WithClock(func() time.Time { return fixedNow }))
	recent := s.Score(relation.WorksAt, daysAgo(10))
	old := s.Score(relation.WorksAt, daysAgo(730))
	if recent <= old {
		t.Errorf("Score(works_at, 10 days) = %v, want > Score(works_at, 2 years) = %v", recent, old)
	}
}

func TestMultiplierUsesCalendarDays(t *testing.T) {
	// 29 calendar days ago, late in the day: still inside the <30 band.
	now := time.Date(2026, time.March, 15, 23, 59, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return now }))
	if got := s.Multiplier("2026-02-14"); got != 1.2 {
		t.Errorf("Multiplier(29 days) = %v, want 1.2", got)
	}
	if got := s.Multiplier("2026-02-13"); got != 1.0 {
		t.Errorf("Multiplier(30 days) = %v, want 1.0", got)
	}
}

func TestMultiplierKeepsWrittenDate(t *testing.T) {
	now := time.Date(2026, time.October, 16, 12, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return now }))
	// 365 days before the written date is 2025-10-16, whatever the offset.
	if got := s.Multiplier("2025-10-16T00:30:00+02:00"); got != 0.8 {
		t.Errorf("Multiplier(365 days, +02:00) = %v, want 0.8", got)
	}
	if got := s.Multiplier("2025-10-17T23:30:00-05:00"); got != 0.9 {
		t.Errorf("Multiplier(364 days, -05:00) = %v, want 0.9", got)
	}
}

func TestClassifyStrength(t *testing.T) {
	tests := []struct {
		score float64
		want  relation.Strength
	}{
		{1.0, relation.Strong},
		{0.70, relation.Strong},
		{0.69, relation.Medium},
		{0.40, relation.Medium},
		{0.39, relation.Weak},
		{0.24, relation.Weak},
		{0, relation.Weak},
	}
	for _, tt := range tests {
		if got := ClassifyStrength(tt.score); got != tt.want {
			t.Errorf("ClassifyStrength(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in     string
		want   time.Time
		wantOK bool
	}{
		{"2024-01-15", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{" 15 Jan 2024 ", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"Jan 15, 2024", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"2024-01-15T23:00:00-05:00", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"2026-10-16T00:30:00+02:00", time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"not a date", time.Time{}, false},
		{"2024-13-45", time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseDate(tt.in)
		if ok != tt.wantOK || !got.Equal(tt.want) {
			t.Errorf("ParseDate(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
