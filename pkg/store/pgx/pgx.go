// Package pgx implements store.GraphStore against PostgreSQL. Vectors are
// stored in pgvector columns and nearest-neighbor search runs through the
// cosine distance operator, so similarity queries use the vector index
// instead of scanning every row.
package pgx

import (
	"context"
	"errors"
	"fmt"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/peakfunnel/intentgraph/pkg/graph"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
}

// Store is the PostgreSQL-backed GraphStore. It works over any connection
// shape satisfying pgxIConn (pool, conn, or tx) so tests can substitute a
// fake.
type Store struct {
	conn pgxIConn
}

// New creates a Store over an existing connection or pool. pgvector types
// must be registered on the connection (see pgvector-go/pgx).
func New(conn pgxIConn) *Store {
	return &Store{conn: conn}
}

// wrapErr converts driver failures into the domain taxonomy: every
// non-row-level error becomes graph.ErrStoreUnavailable so callers switch
// to fallback mode instead of surfacing an internal failure.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgxv5.ErrNoRows) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, graph.ErrStoreUnavailable, err)
}

// Ping verifies connectivity and schema shape in one round trip.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	if err := s.conn.QueryRow(ctx, `SELECT 1 FROM nodes LIMIT 1`).Scan(&one); err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return nil
		}
		return wrapErr("ping", err)
	}
	return nil
}

func (s *Store) CountNodes(ctx context.Context) (int64, error) {
	var count int64
	err := s.conn.QueryRow(ctx, `SELECT COUNT(*) FROM nodes`).Scan(&count)
	return count, wrapErr("count nodes", err)
}

func (s *Store) CountEdges(ctx context.Context) (int64, error) {
	var count int64
	err := s.conn.QueryRow(ctx, `SELECT COUNT(*) FROM edges`).Scan(&count)
	return count, wrapErr("count edges", err)
}
