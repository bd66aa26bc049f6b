package pgx

import (
	"context"

	pgxv5 "github.com/jackc/pgx/v5"

	"github.com/peakfunnel/intentgraph/pkg/graph"
)

const edgeColumns = `id, from_node_id, to_node_id, edge_type, weight, confidence,
	click_count, conversion_count, is_active, created_by, created_at, updated_at`

func scanEdge(row pgxv5.Row) (*graph.Edge, error) {
	var edge graph.Edge
	err := row.Scan(
		&edge.ID, &edge.FromNodeID, &edge.ToNodeID, &edge.Type,
		&edge.Weight, &edge.Confidence, &edge.ClickCount, &edge.ConversionCount,
		&edge.IsActive, &edge.CreatedBy, &edge.CreatedAt, &edge.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &edge, nil
}

func collectEdges(rows pgxv5.Rows) ([]*graph.Edge, error) {
	defer rows.Close()
	out := make([]*graph.Edge, 0)
	for rows.Next() {
		edge, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, edge)
	}
	return out, rows.Err()
}

// UpsertEdge relies on the (from_node_id, to_node_id, edge_type) unique
// constraint: duplicate creates converge on the existing row, which also
// reactivates previously deactivated edges. This is the store's native
// conflict resolution; no read-then-write race is possible.
func (s *Store) UpsertEdge(ctx context.Context, edge *graph.Edge) (*graph.Edge, error) {
	createdBy := edge.CreatedBy
	if createdBy == "" {
		createdBy = graph.OriginSystem
	}

	row := s.conn.QueryRow(ctx, `
		INSERT INTO edges (from_node_id, to_node_id, edge_type, weight, confidence, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (from_node_id, to_node_id, edge_type) DO UPDATE SET
			weight = EXCLUDED.weight,
			confidence = EXCLUDED.confidence,
			is_active = TRUE,
			updated_at = now()
		RETURNING `+edgeColumns,
		edge.FromNodeID, edge.ToNodeID, edge.Type, edge.Weight, edge.Confidence, createdBy,
	)

	stored, err := scanEdge(row)
	if err != nil {
		return nil, wrapErr("upsert edge", err)
	}
	return stored, nil
}

func (s *Store) OutgoingEdges(ctx context.Context, fromNodeID int64, activeOnly bool) ([]*graph.Edge, error) {
	query := `SELECT ` + edgeColumns + ` FROM edges WHERE from_node_id = $1`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY id`

	rows, err := s.conn.Query(ctx, query, fromNodeID)
	if err != nil {
		return nil, wrapErr("outgoing edges", err)
	}
	edges, err := collectEdges(rows)
	return edges, wrapErr("outgoing edges", err)
}

func (s *Store) ListActiveEdges(ctx context.Context, limit int) ([]*graph.Edge, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.conn.Query(ctx, `
		SELECT `+edgeColumns+` FROM edges WHERE is_active ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, wrapErr("list active edges", err)
	}
	edges, err := collectEdges(rows)
	return edges, wrapErr("list active edges", err)
}

func (s *Store) UpdateEdgeScores(ctx context.Context, id int64, weight, confidence float64) error {
	tag, err := s.conn.Exec(ctx, `
		UPDATE edges SET weight = $2, confidence = $3, updated_at = now() WHERE id = $1`,
		id, weight, confidence,
	)
	if err != nil {
		return wrapErr("update edge scores", err)
	}
	if tag.RowsAffected() == 0 {
		return graph.NotFound("edge", id)
	}
	return nil
}

// RecordEdgeInteraction increments the click/conversion counters. The
// increments are monotonic, so concurrent calls are safe without locks.
func (s *Store) RecordEdgeInteraction(ctx context.Context, id int64, clicks, conversions int64) error {
	tag, err := s.conn.Exec(ctx, `
		UPDATE edges SET
			click_count = click_count + $2,
			conversion_count = conversion_count + $3,
			updated_at = now()
		WHERE id = $1`,
		id, clicks, conversions,
	)
	if err != nil {
		return wrapErr("record edge interaction", err)
	}
	if tag.RowsAffected() == 0 {
		return graph.NotFound("edge", id)
	}
	return nil
}

func (s *Store) DeactivateEdge(ctx context.Context, id int64) error {
	tag, err := s.conn.Exec(ctx, `
		UPDATE edges SET is_active = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return wrapErr("deactivate edge", err)
	}
	if tag.RowsAffected() == 0 {
		return graph.NotFound("edge", id)
	}
	return nil
}

func (s *Store) OrphanedEdges(ctx context.Context) ([]*graph.Edge, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+edgeColumns+` FROM edges e
		WHERE e.is_active
		  AND (NOT EXISTS (SELECT 1 FROM nodes n WHERE n.id = e.from_node_id)
		    OR NOT EXISTS (SELECT 1 FROM nodes n WHERE n.id = e.to_node_id))
		ORDER BY e.id`)
	if err != nil {
		return nil, wrapErr("orphaned edges", err)
	}
	edges, err := collectEdges(rows)
	return edges, wrapErr("orphaned edges", err)
}
