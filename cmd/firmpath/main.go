// Command firmpath detects warm-introduction paths from exported contacts into
// target organizations and stores the resulting relationship edges.
//
// Usage:
//
//	firmpath -orgs targets.csv -contacts alice=Connections.csv
//	firmpath -config firmpath.yaml -store sqlite -dsn edges.db -orgs targets.csv -contacts bob=bob.csv -out edges.json
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/codeGROOVE-dev/firmpath/pkg/config"
	"github.com/codeGROOVE-dev/firmpath/pkg/detect"
	"github.com/codeGROOVE-dev/firmpath/pkg/edgestore"
	"github.com/codeGROOVE-dev/firmpath/pkg/importer"
	"github.com/codeGROOVE-dev/firmpath/pkg/matchcache"
	"github.com/codeGROOVE-dev/firmpath/pkg/relation"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// contactSource is one Connections.csv export and the team member who owns it.
type contactSource struct {
	owner string
	path  string
}

//nolint:gocognit,revive // flag wiring reads best in one place
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("firmpath", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "YAML config file (FIRMPATH_* environment variables override it)")
	orgsPath := fs.String("orgs", "", "CSV of target organizations with id,name columns (required)")
	defaultOwner := fs.String("owner", "", "owner recorded for -contacts files given without owner=")
	driver := fs.String("store", "", "edge store: memory, sqlite or postgres")
	dsn := fs.String("dsn", "", "sqlite file path or postgres connection string")
	manualPath := fs.String("import-edges", "", "JSON file of manually curated edges to load before detection")
	outPath := fs.String("out", "", "write the stored edge set as JSON to this file (- for stdout)")
	workers := fs.Int("workers", 0, "parallel detection workers")
	debug := fs.Bool("debug", false, "enable debug logging")
	verbose := fs.Bool("v", false, "verbose logging (same as -debug)")
	noCache := fs.Bool("no-cache", false, "disable the persistent match cache")
	cacheTTL := fs.Duration("cache-ttl", 0, "match cache time-to-live (default from config, 7 days)")
	var sources []contactSource
	fs.Func("contacts", "LinkedIn Connections.csv export as [owner=]path; repeatable", func(v string) error {
		owner, path := splitSource(v)
		if path == "" {
			return errors.New("empty path")
		}
		sources = append(sources, contactSource{owner: owner, path: path})
		return nil
	})
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: firmpath [options] -orgs <orgs.csv> -contacts [owner=]<Connections.csv> ...")
		fmt.Fprintln(stderr, "\nOptions:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *orgsPath == "" || len(sources) == 0 {
		fs.Usage()
		return flag.ErrHelp
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *driver != "" {
		cfg.Store.Driver = *driver
	}
	if *dsn != "" {
		cfg.Store.DSN = *dsn
	}
	if *workers > 0 {
		cfg.Detect.Workers = *workers
	}
	if *noCache {
		cfg.Cache.Enabled = false
	}
	if *cacheTTL > 0 {
		cfg.Cache.TTL = *cacheTTL
	}
	if *debug || *verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Setup logger
	logLevel, err := cfg.Log.SlogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: logLevel}))

	orgs, err := readOrganizations(*orgsPath, logger)
	if err != nil {
		return err
	}
	var contacts []relation.Contact
	for _, src := range sources {
		owner := src.owner
		if owner == "" {
			owner = *defaultOwner
		}
		cs, err := readContacts(src.path, owner, logger)
		if err != nil {
			return err
		}
		logger.Debug("contacts loaded", "path", src.path, "owner", owner, "count", len(cs))
		contacts = append(contacts, cs...)
	}

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close edge store", "error", err)
		}
	}()

	replaceOpts := []edgestore.ReplaceOption{edgestore.WithBatchSize(cfg.Store.BatchSize)}
	if *manualPath != "" {
		manual, err := readManualEdges(*manualPath)
		if err != nil {
			return err
		}
		// Seeded after the previous run's edges are deleted.
		replaceOpts = append(replaceOpts, edgestore.WithSeed(manual))
	}

	opts := []detect.Option{
		detect.WithLogger(logger),
		detect.WithWorkers(cfg.Detect.Workers),
		detect.WithSimilarityFloor(cfg.Detect.SimilarityFloor),
		detect.WithReplaceOptions(replaceOpts...),
	}

	// Setup cache
	if cfg.Cache.Enabled {
		cache, err := openCache(cfg.Cache)
		if err != nil {
			logger.Warn("failed to initialize match cache, continuing without cache", "error", err)
		} else {
			defer func() {
				st := cache.Stats()
				logger.Debug("match cache stats", "hits", st.Hits, "misses", st.Misses, "hit_rate", st.HitRate())
				if err := cache.Close(); err != nil {
					logger.Warn("failed to close match cache", "error", err)
				}
			}()
			opts = append(opts, detect.WithCache(cache))
		}
	}

	report, err := detect.New(opts...).Run(ctx, contacts, orgs, store)
	if err != nil {
		return err
	}
	if *manualPath != "" {
		logger.Info("manual edges loaded", "inserted", report.Replace.Seeded, "conflicts", report.Replace.SeedConflicts)
	}
	fmt.Fprintln(stderr, report.Summary())

	if *outPath == "" {
		return nil
	}
	edges, err := store.Edges(ctx)
	if err != nil {
		return fmt.Errorf("list edges: %w", err)
	}
	buckets := detect.Bucket(edges)
	logger.Info("stored edges by strength",
		"strong", len(buckets[relation.Strong]), "medium", len(buckets[relation.Medium]), "weak", len(buckets[relation.Weak]),
		"organizations", len(detect.CountByOrganization(edges)))
	return writeEdges(*outPath, detect.Rank(edges), stdout)
}

// splitSource reads "owner=path". A value naming an existing file is taken as a bare
// path even when it contains "=".
func splitSource(v string) (owner, path string) {
	if _, err := os.Stat(v); err == nil {
		return "", v
	}
	if owner, path, ok := strings.Cut(v, "="); ok {
		return owner, path
	}
	return "", v
}

func readOrganizations(path string, logger *slog.Logger) ([]relation.Organization, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open organizations: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only
	return importer.ReadOrganizations(f, importer.WithLogger(logger))
}

func readContacts(path, owner string, logger *slog.Logger) ([]relation.Contact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open contacts: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only
	cs, err := importer.ReadContacts(f, owner, importer.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cs, nil
}

func openStore(ctx context.Context, sc config.StoreConfig) (edgestore.Store, error) {
	switch sc.Driver {
	case config.DriverSQLite:
		return edgestore.OpenSQLite(sc.DSN)
	case config.DriverPostgres:
		return edgestore.OpenPostgres(ctx, sc.DSN)
	default:
		return edgestore.NewMemory(), nil
	}
}

func openCache(cc config.CacheConfig) (*matchcache.Cache, error) {
	if cc.Dir != "" {
		return matchcache.NewWithPath(cc.TTL, cc.Dir)
	}
	return matchcache.New(cc.TTL)
}

// readManualEdges reads curated edges. Edges without provenance are tagged "manual".
func readManualEdges(path string) ([]relation.Edge, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manual edges: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only
	edges, err := importer.ReadEdgesJSON(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for i, e := range edges {
		if e.DetectedVia == "" {
			edges[i].DetectedVia = "manual"
		}
		if e.DetectedVia == relation.DetectedViaCompanyMatch {
			return nil, fmt.Errorf("%s: manual edge %s/%s uses reserved provenance %q", path, e.OrganizationID, e.ContactID, e.DetectedVia)
		}
	}
	return edges, nil
}

func writeEdges(path string, edges []relation.Edge, stdout io.Writer) (err error) {
	if path == "-" {
		return importer.WriteEdgesJSON(stdout, edges)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close output: %w", cerr)
		}
	}()
	return importer.WriteEdgesJSON(f, edges)
}
