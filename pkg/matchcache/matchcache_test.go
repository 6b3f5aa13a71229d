package matchcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/codeGROOVE-dev/firmpath/pkg/match"
	"github.com/codeGROOVE-dev/firmpath/pkg/relation"
)

var orgs = []relation.Organization{
	{ID: "o1", Name: "Sequoia Capital"},
	{ID: "o2", Name: "Benchmark"},
	{ID: "o3", Name: "Benchmark Partners"},
}

func TestLookupMatchesIndex(t *testing.T) {
	cache, err := NewWithPath(time.Hour, t.TempDir())
	if err != nil {
		t.Fatalf("NewWithPath() error = %v", err)
	}
	defer func() { _ = cache.Close() }() //nolint:errcheck // test cleanup

	idx := match.Build(orgs)
	ctx := context.Background()

	for _, company := range []string{"Sequoia Capital Management LLC", "Benchmark", "Unrelated Corp", "AB"} {
		want := idx.Query(company)
		for range 2 {
			got := Lookup(ctx, cache, idx, company, nil)
			if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Lookup(%q) mismatch (-want +got):\n%s", company, diff)
			}
		}
	}

	stats := cache.Stats()
	if stats.Misses != 3 || stats.Hits != 3 {
		t.Errorf("Stats() = %+v, want 3 hits and 3 misses", stats)
	}
}

func TestLookupNilCache(t *testing.T) {
	idx := match.Build(orgs)
	got := Lookup(context.Background(), nil, idx, "Benchmark", nil)
	if diff := cmp.Diff(idx.Query("Benchmark"), got); diff != "" {
		t.Errorf("Lookup mismatch (-want +got):\n%s", diff)
	}
}

func TestLookupNullCache(t *testing.T) {
	cache := NewNull()
	idx := match.Build(orgs)
	got := Lookup(context.Background(), cache, idx, "Sequoia Capital", nil)
	if len(got) != 1 || got[0].OrganizationID != "o1" {
		t.Errorf("Lookup = %v, want single o1 candidate", got)
	}
}

type failingCache struct{}

func (failingCache) GetSet(context.Context, string, func(context.Context) ([]byte, error), ...time.Duration) ([]byte, error) {
	return nil, errors.New("disk full")
}

func (failingCache) TTL() time.Duration { return 0 }

type corruptCache struct{}

func (corruptCache) GetSet(context.Context, string, func(context.Context) ([]byte, error), ...time.Duration) ([]byte, error) {
	return []byte("{not json"), nil
}

func (corruptCache) TTL() time.Duration { return 0 }

func TestLookupFallsBackOnCacheFailure(t *testing.T) {
	idx := match.Build(orgs)
	want := idx.Query("Benchmark")
	for name, c := range map[string]Cacher{"failing": failingCache{}, "corrupt": corruptCache{}} {
		got := Lookup(context.Background(), c, idx, "Benchmark", nil)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("%s: Lookup mismatch (-want +got):\n%s", name, diff)
		}
	}
}

func TestKeyNamespacedByFingerprint(t *testing.T) {
	a := match.Build(orgs)
	b := match.Build(orgs[:1])
	if Key(a.Fingerprint(), "benchmark") == Key(b.Fingerprint(), "benchmark") {
		t.Error("Key() collides across fingerprints")
	}
	if len(Key("x", "y")) != 64 {
		t.Error("Key() length != 64")
	}
}

func TestStatsHitRate(t *testing.T) {
	if got := (Stats{}).HitRate(); got != 0 {
		t.Errorf("HitRate() = %v, want 0", got)
	}
	if got := (Stats{Hits: 3, Misses: 1}).HitRate(); got != 75 {
		t.Errorf("HitRate() = %v, want 75", got)
	}
}
