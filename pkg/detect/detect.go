// Package detect finds warm-introduction paths from contacts into target organizations.
//
// Basic usage:
//
//	d := detect.New(detect.WithLogger(logger))
//	report, err := d.Run(ctx, contacts, orgs, store)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(report.Summary())
package detect

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/codeGROOVE-dev/firmpath/pkg/classify"
	"github.com/codeGROOVE-dev/firmpath/pkg/edgestore"
	"github.com/codeGROOVE-dev/firmpath/pkg/match"
	"github.com/codeGROOVE-dev/firmpath/pkg/matchcache"
	"github.com/codeGROOVE-dev/firmpath/pkg/normalize"
	"github.com/codeGROOVE-dev/firmpath/pkg/relation"
	"github.com/codeGROOVE-dev/firmpath/pkg/score"
)

const (
	// DefaultWorkers is the number of contact shards processed in parallel.
	DefaultWorkers = 8
	shardSize      = 256
)

// Option configures a Detector.
type Option func(*Detector)

// Detector builds relationship edges. It holds no per-run state and may be reused.
type Detector struct {
	logger      *slog.Logger
	classifier  *classify.Classifier
	scorer      *score.Scorer
	cache       matchcache.Cacher
	detectedVia string
	matchOpts   []match.Option
	replaceOpts []edgestore.ReplaceOption
	workers     int
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) { d.logger = logger }
}

// WithClassifier replaces the default two-branch classification policy.
func WithClassifier(c *classify.Classifier) Option {
	return func(d *Detector) { d.classifier = c }
}

// WithScorer sets the scorer, typically to pin its clock.
func WithScorer(s *score.Scorer) Option {
	return func(d *Detector) { d.scorer = s }
}

// WithCache memoizes index lookups across runs.
func WithCache(c matchcache.Cacher) Option {
	return func(d *Detector) { d.cache = c }
}

// WithWorkers sets the number of parallel workers. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithSimilarityFloor overrides the match index similarity floor.
func WithSimilarityFloor(floor float64) Option {
	return func(d *Detector) { d.matchOpts = append(d.matchOpts, match.WithFloor(floor)) }
}

// WithReplaceOptions passes options through to edgestore.Replace.
func WithReplaceOptions(opts ...edgestore.ReplaceOption) Option {
	return func(d *Detector) { d.replaceOpts = append(d.replaceOpts, opts...) }
}

// New creates a Detector.
func New(opts ...Option) *Detector {
	d := &Detector{
		logger:      slog.Default(),
		classifier:  classify.Default(),
		scorer:      score.New(),
		detectedVia: relation.DetectedViaCompanyMatch,
		workers:     DefaultWorkers,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Index builds the match index for orgs using the detector's match options.
func (d *Detector) Index(orgs []relation.Organization) *match.Index {
	return match.Build(orgs, d.matchOpts...)
}

// Build returns one edge per matched (organization, contact) pair, ordered by
// organization then contact. Contacts without a usable company name are skipped.
func (d *Detector) Build(ctx context.Context, contacts []relation.Contact, idx *match.Index) ([]relation.Edge, error) {
	edges, _, err := d.build(ctx, contacts, idx)
	return edges, err
}

type shardResult struct {
	edges   []relation.Edge
	skipped int
}

func (d *Detector) build(ctx context.Context, contacts []relation.Contact, idx *match.Index) ([]relation.Edge, int, error) {
	shards := make([]shardResult, (len(contacts)+shardSize-1)/shardSize)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i := range shards {
		if gctx.Err() != nil {
			break
		}
		lo := i * shardSize
		hi := min(lo+shardSize, len(contacts))
		g.Go(func() error {
			for _, c := range contacts[lo:hi] {
				if err := gctx.Err(); err != nil {
					return err
				}
				edges := d.detectContact(gctx, c, idx)
				if edges == nil {
					shards[i].skipped++
					continue
				}
				shards[i].edges = append(shards[i].edges, edges...)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	var skipped int
	seen := make(map[relation.Key]int)
	var out []relation.Edge
	for _, s := range shards {
		skipped += s.skipped
		for _, e := range s.edges {
			if j, dup := seen[e.Key()]; dup {
				if e.PathStrength > out[j].PathStrength {
					out[j] = e
				}
				continue
			}
			seen[e.Key()] = len(out)
			out = append(out, e)
		}
	}

	slices.SortFunc(out, func(a, b relation.Edge) int {
		if c := cmp.Compare(a.OrganizationID, b.OrganizationID); c != 0 {
			return c
		}
		return cmp.Compare(a.ContactID, b.ContactID)
	})
	return out, skipped, nil
}

// detectContact returns the edges for one contact, or nil when its company name is
// empty or too short to match.
func (d *Detector) detectContact(ctx context.Context, c relation.Contact, idx *match.Index) []relation.Edge {
	if utf8.RuneCountInString(normalize.Name(c.Company)) < match.MinQueryLen {
		return nil
	}
	candidates := matchcache.Lookup(ctx, d.cache, idx, c.Company, d.logger)
	if len(candidates) == 0 {
		d.logger.Debug("no organization match", "contact_id", c.ID, "company", c.Company)
		return []relation.Edge{}
	}

	hasPosition := strings.TrimSpace(c.Position) != ""
	desc := Describe(c)
	edges := make([]relation.Edge, 0, len(candidates))
	for _, cand := range candidates {
		t := d.classifier.Classify(classify.Signals{Similarity: cand.Similarity, HasCurrentPosition: hasPosition})
		edges = append(edges, relation.Edge{
			OrganizationID:  cand.OrganizationID,
			ContactID:       c.ID,
			Type:            t,
			PathStrength:    d.scorer.Score(t, c.ConnectedOn),
			PathDescription: desc,
			DetectedVia:     d.detectedVia,
		})
	}
	return edges
}

// Report summarizes one detection run.
//
//nolint:govet // fieldalignment: intentional layout for readability
type Report struct {
	RunID         string
	Contacts      int // Contacts considered
	Organizations int // Organizations supplied
	Indexed       int // Organizations with a matchable name
	Skipped       int // Contacts without a usable company name
	Detected      int // Edges built
	Replace       edgestore.ReplaceResult
	Duration      time.Duration
}

// StorageErrors returns the number of batches that could not be written.
func (r *Report) StorageErrors() int {
	return r.Replace.FailedBatches
}

// Summary renders the report for people.
func (r *Report) Summary() string {
	return fmt.Sprintf("%d relationships detected, %d storage errors", r.Detected, r.StorageErrors())
}

// Run builds the index, detects edges, and replaces the previously detected edge set
// in store. Storage failures of individual batches are reported, not returned.
func (d *Detector) Run(ctx context.Context, contacts []relation.Contact, orgs []relation.Organization, store edgestore.Store) (*Report, error) {
	start := time.Now()
	report := &Report{
		RunID:         uuid.NewString(),
		Contacts:      len(contacts),
		Organizations: len(orgs),
	}
	logger := d.logger.With("run_id", report.RunID)

	idx := d.Index(orgs)
	report.Indexed = idx.Len()
	logger.Info("organization index built", "organizations", len(orgs), "indexed", idx.Len())

	edges, skipped, err := d.build(ctx, contacts, idx)
	if err != nil {
		return report, fmt.Errorf("detect edges: %w", err)
	}
	report.Skipped = skipped
	report.Detected = len(edges)

	opts := append([]edgestore.ReplaceOption{edgestore.WithLogger(logger)}, d.replaceOpts...)
	res, err := edgestore.Replace(ctx, store, d.detectedVia, edges, opts...)
	report.Replace = res
	report.Duration = time.Since(start)
	if err != nil {
		return report, fmt.Errorf("replace edges: %w", err)
	}

	logger.Info("detection run complete",
		"contacts", report.Contacts, "skipped", report.Skipped, "detected", report.Detected,
		"stored", res.Stored, "conflicts", res.Conflicts, "failed_batches", res.FailedBatches,
		"duration", report.Duration)
	return report, nil
}
