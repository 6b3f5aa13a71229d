// Package edgestore persists relationship edges and swaps engine-generated edge sets.
package edgestore

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/codeGROOVE-dev/firmpath/pkg/relation"
)

// DefaultBatchSize bounds the number of edges written per InsertBatch call.
const DefaultBatchSize = 500

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("edge store closed")

// BatchResult counts the outcome of one InsertBatch call.
type BatchResult struct {
	Inserted  int
	Conflicts int // Rows skipped because the (organization, contact) pair already exists
}

// Store is the persistence boundary for relationship edges.
// Implementations must enforce uniqueness on (organization_id, contact_id) and report
// violations of it as Conflicts, not as errors.
type Store interface {
	DeleteByProvenance(ctx context.Context, detectedVia string) (int, error)
	InsertBatch(ctx context.Context, edges []relation.Edge) (BatchResult, error)
	Edges(ctx context.Context) ([]relation.Edge, error)
	Close() error
}

// ReplaceLocker is implemented by stores that carry their own Replace lock.
// Stores without one are locked by identity and must be comparable, typically a pointer.
type ReplaceLocker interface {
	ReplaceLock() *sync.Mutex
}

// permanentError marks store failures that retrying cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Replace drops the batch without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// ReplaceResult summarizes a Replace call. A run with FailedBatches > 0 is a partial success.
type ReplaceResult struct {
	Errors        []error
	Deleted       int
	Seeded        int // Edges written from WithSeed
	SeedConflicts int
	Stored        int
	Conflicts     int
	FailedBatches int
	Dropped       int // Edges in failed batches
}

type replaceConfig struct {
	logger     *slog.Logger
	batchSize  int
	attempts   uint
	retryDelay time.Duration
	seed       []relation.Edge
}

// ReplaceOption configures Replace.
type ReplaceOption func(*replaceConfig)

// WithBatchSize sets the number of edges per batch.
func WithBatchSize(n int) ReplaceOption {
	return func(c *replaceConfig) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ReplaceOption {
	return func(c *replaceConfig) { c.logger = logger }
}

// WithRetry sets how often a failing batch is attempted and the delay between attempts.
func WithRetry(attempts uint, delay time.Duration) ReplaceOption {
	return func(c *replaceConfig) {
		if attempts > 0 {
			c.attempts = attempts
		}
		c.retryDelay = delay
	}
}

// WithSeed inserts edges of other provenance after the delete and before the new edge
// set, in the same serialized step. Seeded edges win their pairs over the new set.
func WithSeed(edges []relation.Edge) ReplaceOption {
	return func(c *replaceConfig) { c.seed = append(c.seed, edges...) }
}

// replaceLocks serializes Replace per store so one run's delete cannot race another's insert.
var replaceLocks sync.Map

// Replace deletes every edge tagged detectedVia and inserts edges in bounded batches.
// Edges with other provenance are left alone. A batch that keeps failing is logged and
// dropped while the remaining batches proceed. Only a failed delete, or a cancelled
// context, returns an error.
func Replace(ctx context.Context, s Store, detectedVia string, edges []relation.Edge, opts ...ReplaceOption) (ReplaceResult, error) {
	cfg := &replaceConfig{
		logger:     slog.Default(),
		batchSize:  DefaultBatchSize,
		attempts:   3,
		retryDelay: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	mu, err := replaceLock(s)
	if err != nil {
		return ReplaceResult{}, err
	}
	mu.Lock()
	defer mu.Unlock()

	var res ReplaceResult
	deleted, err := s.DeleteByProvenance(ctx, detectedVia)
	if err != nil {
		return res, fmt.Errorf("delete %s edges: %w", detectedVia, err)
	}
	res.Deleted = deleted
	cfg.logger.Debug("deleted previous edges", "detected_via", detectedVia, "count", deleted)

	if len(cfg.seed) > 0 {
		br, err := insertAll(ctx, s, cfg.seed, cfg, &res)
		if err != nil {
			return res, err
		}
		res.Seeded, res.SeedConflicts = br.Inserted, br.Conflicts
		cfg.logger.Debug("seed edges written", "inserted", br.Inserted, "conflicts", br.Conflicts)
	}

	br, err := insertAll(ctx, s, edges, cfg, &res)
	if err != nil {
		return res, err
	}
	res.Stored, res.Conflicts = br.Inserted, br.Conflicts

	cfg.logger.Info("edge set replaced",
		"detected_via", detectedVia, "deleted", res.Deleted, "seeded", res.Seeded, "stored", res.Stored,
		"conflicts", res.Conflicts, "failed_batches", res.FailedBatches)
	return res, nil
}

func replaceLock(s Store) (*sync.Mutex, error) {
	if l, ok := s.(ReplaceLocker); ok {
		return l.ReplaceLock(), nil
	}
	if !reflect.TypeOf(s).Comparable() {
		return nil, fmt.Errorf("store %T is not comparable: use a pointer or implement ReplaceLocker", s)
	}
	muI, _ := replaceLocks.LoadOrStore(s, &sync.Mutex{})
	mu, ok := muI.(*sync.Mutex)
	if !ok {
		return nil, errors.New("replace lock has unexpected type")
	}
	return mu, nil
}

// insertAll writes edges in batches. Failed batches are recorded in res and skipped;
// only context cancellation returns an error.
func insertAll(ctx context.Context, s Store, edges []relation.Edge, cfg *replaceConfig, res *ReplaceResult) (BatchResult, error) {
	var total BatchResult
	for start := 0; start < len(edges); start += cfg.batchSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		batch := edges[start:min(start+cfg.batchSize, len(edges))]
		br, err := insertWithRetry(ctx, s, batch, cfg)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return total, ctxErr
			}
			res.FailedBatches++
			res.Dropped += len(batch)
			res.Errors = append(res.Errors, err)
			cfg.logger.Warn("dropping edge batch after write failure",
				"batch_start", start, "batch_size", len(batch), "error", err)
			continue
		}
		total.Inserted += br.Inserted
		total.Conflicts += br.Conflicts
	}
	return total, nil
}

func insertWithRetry(ctx context.Context, s Store, batch []relation.Edge, cfg *replaceConfig) (BatchResult, error) {
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(cfg.attempts),
		retry.Delay(cfg.retryDelay),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			cfg.logger.Debug("retrying edge batch", "attempt", n+1, "batch_size", len(batch), "error", err)
		}),
	}
	if jitter := cfg.retryDelay / 2; jitter > 0 {
		opts = append(opts, retry.MaxJitter(jitter))
	}

	return retry.DoWithData(
		func() (BatchResult, error) {
			return s.InsertBatch(ctx, batch)
		},
		opts...,
	)
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrClosed) {
		return false
	}
	return !IsPermanent(err)
}

// sortEdges orders edges by (organization_id, contact_id).
func sortEdges(edges []relation.Edge) {
	slices.SortFunc(edges, func(a, b relation.Edge) int {
		if c := cmp.Compare(a.OrganizationID, b.OrganizationID); c != 0 {
			return c
		}
		return cmp.Compare(a.ContactID, b.ContactID)
	})
}
