// Package matchcache memoizes index lookups across runs with thundering herd prevention.
//
// Imports tend to repeat the same company strings run after run. Results are keyed by
// the index fingerprint, so any change to the organization set starts a fresh namespace.
package matchcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/codeGROOVE-dev/sfcache"
	"github.com/codeGROOVE-dev/sfcache/pkg/store/localfs"
	"github.com/codeGROOVE-dev/sfcache/pkg/store/null"

	"github.com/codeGROOVE-dev/firmpath/pkg/match"
	"github.com/codeGROOVE-dev/firmpath/pkg/normalize"
)

// Stats tracks cache hit/miss statistics.
type Stats struct {
	Hits   int64
	Misses int64
}

// HitRate returns the hit rate as a percentage (0-100).
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Cacher allows external cache implementations.
type Cacher interface {
	GetSet(ctx context.Context, key string, fetch func(context.Context) ([]byte, error), ttl ...time.Duration) ([]byte, error)
	TTL() time.Duration
}

// Cache wraps sfcache for candidate lists.
type Cache struct {
	*sfcache.TieredCache[string, []byte]

	stats atomic.Pointer[Stats]
	ttl   time.Duration
}

// New creates a Cache with disk persistence at ~/.cache/firmpath.
func New(ttl time.Duration) (*Cache, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}
	return NewWithPath(ttl, filepath.Join(cacheDir, "firmpath"))
}

// NewNull creates a Cache with no persistence.
func NewNull() *Cache {
	tc, err := sfcache.NewTiered[string, []byte](null.New[string, []byte]())
	if err != nil {
		panic("sfcache.NewTiered with null store: " + err.Error())
	}
	return newCache(tc, 0)
}

// NewWithPath creates a Cache with disk persistence at the specified path.
func NewWithPath(ttl time.Duration, cachePath string) (*Cache, error) {
	if err := os.MkdirAll(cachePath, 0o750); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	persist, err := localfs.New[string, []byte]("firmpath", cachePath)
	if err != nil {
		return nil, fmt.Errorf("create persistence layer: %w", err)
	}

	tc, err := sfcache.NewTiered[string, []byte](persist, sfcache.TTL(ttl))
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}

	return newCache(tc, ttl), nil
}

func newCache(tc *sfcache.TieredCache[string, []byte], ttl time.Duration) *Cache {
	c := &Cache{TieredCache: tc, ttl: ttl}
	c.stats.Store(&Stats{})
	return c
}

// TTL returns the default TTL for cache entries.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Stats returns the current hit/miss counts.
func (c *Cache) Stats() Stats {
	return *c.stats.Load()
}

func (c *Cache) record(hit bool) {
	for {
		old := c.stats.Load()
		updated := &Stats{Hits: old.Hits, Misses: old.Misses}
		if hit {
			updated.Hits++
		} else {
			updated.Misses++
		}
		if c.stats.CompareAndSwap(old, updated) {
			return
		}
	}
}

// Key builds the cache key for a normalized name under an index fingerprint.
func Key(fingerprint, normalized string) string {
	hash := sha256.Sum256([]byte(fingerprint + "\x00" + normalized))
	return hex.EncodeToString(hash[:])
}

// Lookup returns idx.Query(company), served from cache when possible.
// A nil cache queries the index directly. Cache failures fall back to the index,
// so the result never depends on cache health.
func Lookup(ctx context.Context, cache Cacher, idx *match.Index, company string, logger *slog.Logger) []match.Candidate {
	key := normalize.Name(company)
	if cache == nil || utf8.RuneCountInString(key) < match.MinQueryLen {
		return idx.QueryKey(key)
	}

	var wasFetched bool
	data, err := cache.GetSet(ctx, Key(idx.Fingerprint(), key), func(context.Context) ([]byte, error) {
		wasFetched = true
		return json.Marshal(idx.QueryKey(key))
	}, cache.TTL())

	if c, ok := cache.(*Cache); ok {
		c.record(!wasFetched)
	}
	if err != nil {
		if logger != nil {
			logger.Debug("match cache unavailable, querying index", "company", company, "error", err)
		}
		return idx.QueryKey(key)
	}

	var out []match.Candidate
	if err := json.Unmarshal(data, &out); err != nil {
		if logger != nil {
			logger.Debug("discarding corrupt match cache entry", "company", company, "error", err)
		}
		return idx.QueryKey(key)
	}
	return out
}
