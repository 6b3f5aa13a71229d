package edgestore

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/codeGROOVE-dev/firmpath/pkg/relation"
)

func TestClassifyPgError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"check violation", &pgconn.PgError{Code: "23514"}, true},
		{"invalid text", &pgconn.PgError{Code: "22P02"}, true},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, false},
		{"network", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPermanent(classifyPgError(tt.err)); got != tt.want {
				t.Errorf("IsPermanent(classifyPgError(%v)) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestPostgresReplace(t *testing.T) {
	dsn := os.Getenv("FIRMPATH_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("FIRMPATH_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	p, err := OpenPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("OpenPostgres() error = %v", err)
	}
	defer func() { _ = p.Close() }() //nolint:errcheck // test cleanup

	edges := []relation.Edge{edge("pg-o1", "pg-c1", 1), edge("pg-o1", "pg-c2", 0.3)}
	for range 2 {
		res, err := Replace(ctx, p, "company_match_test", relabel(edges, "company_match_test"))
		if err != nil {
			t.Fatalf("Replace() error = %v", err)
		}
		if res.Stored != 2 {
			t.Errorf("Replace() = %+v, want 2 stored", res)
		}
	}
	if _, err := p.DeleteByProvenance(ctx, "company_match_test"); err != nil {
		t.Errorf("cleanup DeleteByProvenance() error = %v", err)
	}
}

func relabel(edges []relation.Edge, via string) []relation.Edge {
	out := make([]relation.Edge, len(edges))
	for i, e := range edges {
		e.DetectedVia = via
		out[i] = e
	}
	return out
}
