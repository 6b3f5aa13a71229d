package edgestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codeGROOVE-dev/firmpath/pkg/relation"
)

const pgSchema = `CREATE TABLE IF NOT EXISTS relationship_edges (
	organization_id TEXT NOT NULL,
	contact_id TEXT NOT NULL,
	relationship_type TEXT NOT NULL,
	path_strength DOUBLE PRECISION NOT NULL CHECK (path_strength >= 0 AND path_strength <= 1),
	path_description TEXT NOT NULL DEFAULT '',
	detected_via TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (organization_id, contact_id)
)`

const pgInsert = `INSERT INTO relationship_edges
	(organization_id, contact_id, relationship_type, path_strength, path_description, detected_via)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (organization_id, contact_id) DO NOTHING`

// Postgres stores edges in PostgreSQL. Uniqueness is enforced by the primary key and
// duplicate pairs are skipped with ON CONFLICT DO NOTHING.
type Postgres struct {
	pool      *pgxpool.Pool
	replaceMu sync.Mutex
}

// OpenPostgres connects to dsn and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	if _, err := pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_relationship_edges_detected_via ON relationship_edges(detected_via)`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// DeleteByProvenance removes all edges tagged detectedVia.
func (p *Postgres) DeleteByProvenance(ctx context.Context, detectedVia string) (int, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM relationship_edges WHERE detected_via = $1`, detectedVia)
	if err != nil {
		return 0, classifyPgError(err)
	}
	return int(tag.RowsAffected()), nil
}

// InsertBatch sends the batch in one transaction. Rows skipped by ON CONFLICT are conflicts.
func (p *Postgres) InsertBatch(ctx context.Context, edges []relation.Edge) (BatchResult, error) {
	var res BatchResult
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, e := range edges {
			batch.Queue(pgInsert, e.OrganizationID, e.ContactID, string(e.Type), e.PathStrength, e.PathDescription, e.DetectedVia)
		}

		br := tx.SendBatch(ctx, batch)
		for range edges {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close() //nolint:errcheck // returning the exec error
				return err
			}
			if tag.RowsAffected() == 1 {
				res.Inserted++
			} else {
				res.Conflicts++
			}
		}
		return br.Close()
	})
	if err != nil {
		return BatchResult{}, classifyPgError(err)
	}
	return res, nil
}

// Edges returns all stored edges ordered by (organization_id, contact_id).
func (p *Postgres) Edges(ctx context.Context) ([]relation.Edge, error) {
	rows, err := p.pool.Query(ctx, `SELECT organization_id, contact_id, relationship_type, path_strength, path_description, detected_via
		FROM relationship_edges ORDER BY organization_id, contact_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (relation.Edge, error) {
		var e relation.Edge
		var rt string
		err := row.Scan(&e.OrganizationID, &e.ContactID, &rt, &e.PathStrength, &e.PathDescription, &e.DetectedVia)
		e.Type = relation.RelationshipType(rt)
		return e, err
	})
}

// Close closes the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// classifyPgError marks data and integrity errors (SQLSTATE classes 22 and 23) as permanent.
func classifyPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (strings.HasPrefix(pgErr.Code, "22") || strings.HasPrefix(pgErr.Code, "23")) {
		return Permanent(err)
	}
	return err
}

var _ Store = (*Postgres)(nil)

// ReplaceLock returns the lock Replace holds while swapping edge sets in this store.
func (p *Postgres) ReplaceLock() *sync.Mutex { return &p.replaceMu }
