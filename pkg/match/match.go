// Package match builds an immutable fuzzy-match index over organization names.
//
// An Index is built once per run and may be queried from any number of goroutines:
//
//	idx := match.Build(orgs)
//	for _, c := range idx.Query("Sequoia Capital Management LLC") {
//	    fmt.Println(c.OrganizationID, c.Similarity)
//	}
package match

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/codeGROOVE-dev/firmpath/pkg/normalize"
	"github.com/codeGROOVE-dev/firmpath/pkg/relation"
)

const (
	// MinQueryLen is the shortest normalized name that is ever matched.
	MinQueryLen = 3
	// SimilarityFloor is the default minimum similarity for a candidate (distance < 0.3).
	SimilarityFloor = 0.7
)

// Candidate is an organization resembling a queried name.
type Candidate struct {
	OrganizationID string  `json:"organization_id"`
	Similarity     float64 `json:"similarity"`
}

type entry struct {
	id     string
	key    string
	sorted string
	runes  int
}

// Index answers "which organizations does this name most resemble".
// It is never mutated after Build.
type Index struct {
	fingerprint string
	entries     []entry
	floor       float64
}

// Option configures Build.
type Option func(*Index)

// WithFloor overrides the similarity floor. Values outside (0, 1] are ignored.
func WithFloor(floor float64) Option {
	return func(idx *Index) {
		if floor > 0 && floor <= 1 {
			idx.floor = floor
		}
	}
}

// Build normalizes every organization name once and returns the index.
// Organizations whose names normalize to fewer than MinQueryLen characters are
// left out since no query can reach them. Duplicate IDs keep their first name.
func Build(orgs []relation.Organization, opts ...Option) *Index {
	idx := &Index{floor: SimilarityFloor}
	for _, opt := range opts {
		opt(idx)
	}

	seen := make(map[string]bool, len(orgs))
	for _, o := range orgs {
		if seen[o.ID] {
			continue
		}
		seen[o.ID] = true

		key := normalize.Name(o.Name)
		n := utf8.RuneCountInString(key)
		if n < MinQueryLen {
			continue
		}
		idx.entries = append(idx.entries, entry{id: o.ID, key: key, sorted: sortTokens(key), runes: n})
	}
	slices.SortFunc(idx.entries, func(a, b entry) int { return cmp.Compare(a.id, b.id) })

	h := sha256.New()
	h.Write([]byte(strconv.FormatFloat(idx.floor, 'f', -1, 64)))
	for _, e := range idx.entries {
		h.Write([]byte{0})
		h.Write([]byte(e.id))
		h.Write([]byte{0})
		h.Write([]byte(e.key))
	}
	idx.fingerprint = hex.EncodeToString(h.Sum(nil))

	return idx
}

// Len returns the number of matchable organizations.
func (idx *Index) Len() int { return len(idx.entries) }

// Floor returns the similarity floor in effect.
func (idx *Index) Floor() float64 { return idx.floor }

// Fingerprint identifies the index contents. Two indexes built from the same
// organizations and floor share a fingerprint.
func (idx *Index) Fingerprint() string { return idx.fingerprint }

// Query normalizes rawName and returns matching organizations, most similar first.
func (idx *Index) Query(rawName string) []Candidate {
	return idx.QueryKey(normalize.Name(rawName))
}

// QueryKey is Query for a name that has already been normalized.
func (idx *Index) QueryKey(key string) []Candidate {
	n := utf8.RuneCountInString(key)
	if n < MinQueryLen {
		return nil
	}
	sorted := sortTokens(key)

	var out []Candidate
	for _, e := range idx.entries {
		// Edit distance is at least the length difference, so skip what cannot reach the floor.
		longest := max(n, e.runes)
		if 1-float64(abs(n-e.runes))/float64(longest) < idx.floor {
			continue
		}
		sim := similarity(key, sorted, n, e)
		if sim < idx.floor {
			continue
		}
		out = append(out, Candidate{OrganizationID: e.id, Similarity: sim})
	}

	slices.SortFunc(out, func(a, b Candidate) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return cmp.Compare(a.OrganizationID, b.OrganizationID)
	})
	return out
}

// Similarity compares two normalized names and returns a value in [0, 1].
func Similarity(a, b string) float64 {
	na, nb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return similarity(a, sortTokens(a), na, entry{key: b, sorted: sortTokens(b), runes: nb})
}

// similarity is the better of the plain and token-sorted edit-distance ratios,
// so word order ("capital sequoia" vs "sequoia capital") does not matter.
func similarity(key, sorted string, n int, e entry) float64 {
	if key == e.key {
		return 1
	}
	longest := float64(max(n, e.runes))
	best := 1 - float64(levenshtein.ComputeDistance(key, e.key))/longest
	if sorted != key || e.sorted != e.key {
		if s := 1 - float64(levenshtein.ComputeDistance(sorted, e.sorted))/longest; s > best {
			best = s
		}
	}
	return min(max(best, 0), 1)
}

func sortTokens(s string) string {
	words := strings.Fields(s)
	if len(words) < 2 {
		return s
	}
	slices.Sort(words)
	return strings.Join(words, " ")
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
