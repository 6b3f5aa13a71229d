package edgestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/mattn/go-sqlite3"

	"github.com/codeGROOVE-dev/firmpath/pkg/relation"
)

// SQLite stores edges in a local SQLite database.
type SQLite struct {
	db        *sql.DB
	replaceMu sync.Mutex
}

// OpenSQLite creates or opens a SQLite database at path and ensures the schema exists.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS relationship_edges (
			organization_id TEXT NOT NULL,
			contact_id TEXT NOT NULL,
			relationship_type TEXT NOT NULL,
			path_strength REAL NOT NULL CHECK (path_strength >= 0 AND path_strength <= 1),
			path_description TEXT NOT NULL DEFAULT '',
			detected_via TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (organization_id, contact_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_relationship_edges_detected_via ON relationship_edges(detected_via)`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// DeleteByProvenance removes all edges tagged detectedVia.
func (s *SQLite) DeleteByProvenance(ctx context.Context, detectedVia string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM relationship_edges WHERE detected_via = ?`, detectedVia)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// InsertBatch inserts edges in one transaction. Unique violations on the pair are
// counted as conflicts; any other failure rolls the batch back.
func (s *SQLite) InsertBatch(ctx context.Context, edges []relation.Edge) (res BatchResult, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback() //nolint:errcheck // returning the original error
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO relationship_edges
		(organization_id, contact_id, relationship_type, path_strength, path_description, detected_via)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return res, err
	}
	defer stmt.Close() //nolint:errcheck // closed with the transaction

	for _, e := range edges {
		_, err = stmt.ExecContext(ctx, e.OrganizationID, e.ContactID, string(e.Type), e.PathStrength, e.PathDescription, e.DetectedVia)
		if isSQLiteUniqueViolation(err) {
			res.Conflicts++
			err = nil
			continue
		}
		if err != nil {
			if isSQLiteConstraint(err) {
				return BatchResult{}, Permanent(err)
			}
			return BatchResult{}, err
		}
		res.Inserted++
	}

	if err = tx.Commit(); err != nil {
		return BatchResult{}, err
	}
	return res, nil
}

// Edges returns all stored edges ordered by (organization_id, contact_id).
func (s *SQLite) Edges(ctx context.Context) ([]relation.Edge, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT organization_id, contact_id, relationship_type, path_strength, path_description, detected_via
		FROM relationship_edges ORDER BY organization_id, contact_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // read-only

	var out []relation.Edge
	for rows.Next() {
		var e relation.Edge
		var rt string
		if err := rows.Scan(&e.OrganizationID, &e.ContactID, &rt, &e.PathStrength, &e.PathDescription, &e.DetectedVia); err != nil {
			return nil, err
		}
		e.Type = relation.RelationshipType(rt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func isSQLiteUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) &&
		(se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

func isSQLiteConstraint(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
}

var _ Store = (*SQLite)(nil)

// ReplaceLock returns the lock Replace holds while swapping edge sets in this store.
func (s *SQLite) ReplaceLock() *sync.Mutex { return &s.replaceMu }
