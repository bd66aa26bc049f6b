package pgx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/peakfunnel/intentgraph/pkg/graph"
	"github.com/peakfunnel/intentgraph/pkg/store"
)

const nodeColumns = `id, slug, title, description, node_type, vertical_id, status,
	embedding, click_through_rate, engagement, conversion_rate,
	intent_profile_tags, created_at, updated_at`

func scanNode(row pgxv5.Row) (*graph.Node, error) {
	var (
		node      graph.Node
		embedding *pgvector.Vector
		tags      []string
	)
	err := row.Scan(
		&node.ID, &node.Slug, &node.Title, &node.Description, &node.Type,
		&node.VerticalID, &node.Status, &embedding, &node.ClickThroughRate,
		&node.Engagement, &node.ConversionRate, &tags,
		&node.CreatedAt, &node.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if embedding != nil {
		node.Embedding = embedding.Slice()
	}
	node.IntentProfileTags = tags
	return &node, nil
}

func collectNodes(rows pgxv5.Rows) ([]*graph.Node, error) {
	defer rows.Close()
	out := make([]*graph.Node, 0)
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, node)
	}
	return out, rows.Err()
}

// CreateNode upserts by slug. The node type is fixed at creation and not
// overwritten by later upserts; embeddings only overwrite when present.
func (s *Store) CreateNode(ctx context.Context, node *graph.Node) (*graph.Node, error) {
	status := node.Status
	if status == "" {
		status = graph.NodeStatusActive
	}

	var embedding *pgvector.Vector
	if len(node.Embedding) > 0 {
		v := pgvector.NewVector(node.Embedding)
		embedding = &v
	}

	row := s.conn.QueryRow(ctx, `
		INSERT INTO nodes (slug, title, description, node_type, vertical_id, status,
			embedding, click_through_rate, engagement, conversion_rate, intent_profile_tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (slug) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			vertical_id = EXCLUDED.vertical_id,
			embedding = COALESCE(EXCLUDED.embedding, nodes.embedding),
			updated_at = now()
		RETURNING `+nodeColumns,
		node.Slug, node.Title, node.Description, node.Type, node.VerticalID, status,
		embedding, node.ClickThroughRate, node.Engagement, node.ConversionRate,
		node.IntentProfileTags,
	)

	stored, err := scanNode(row)
	if err != nil {
		return nil, wrapErr("create node", err)
	}
	return stored, nil
}

func (s *Store) GetNode(ctx context.Context, id int64) (*graph.Node, error) {
	row := s.conn.QueryRow(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE id = $1`, id)
	node, err := scanNode(row)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return nil, graph.NotFound("node", id)
	}
	if err != nil {
		return nil, wrapErr("get node", err)
	}
	return node, nil
}

func (s *Store) GetNodeBySlug(ctx context.Context, slug string) (*graph.Node, error) {
	row := s.conn.QueryRow(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE slug = $1`, slug)
	node, err := scanNode(row)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return nil, graph.NotFound("node", slug)
	}
	if err != nil {
		return nil, wrapErr("get node by slug", err)
	}
	return node, nil
}

func nodeFilterClause(filter store.NodeFilter, args []any) (string, []any) {
	clauses := make([]string, 0, 3)
	if filter.Status != "" {
		args = append(args, filter.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(filter.Types) > 0 {
		args = append(args, filter.Types)
		clauses = append(clauses, fmt.Sprintf("node_type = ANY($%d)", len(args)))
	}
	if len(filter.Verticals) > 0 {
		args = append(args, filter.Verticals)
		clauses = append(clauses, fmt.Sprintf("vertical_id = ANY($%d)", len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (s *Store) ListNodes(ctx context.Context, filter store.NodeFilter) ([]*graph.Node, error) {
	where, args := nodeFilterClause(filter, nil)
	query := `SELECT ` + nodeColumns + ` FROM nodes` + where + ` ORDER BY id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list nodes", err)
	}
	nodes, err := collectNodes(rows)
	return nodes, wrapErr("list nodes", err)
}

func (s *Store) UpdateNodeEmbedding(ctx context.Context, id int64, embedding []float32) error {
	tag, err := s.conn.Exec(ctx, `
		UPDATE nodes SET embedding = $2, updated_at = now() WHERE id = $1`,
		id, pgvector.NewVector(embedding),
	)
	if err != nil {
		return wrapErr("update node embedding", err)
	}
	if tag.RowsAffected() == 0 {
		return graph.NotFound("node", id)
	}
	return nil
}

func (s *Store) UpdateNodeStatus(ctx context.Context, id int64, status graph.NodeStatus) error {
	tag, err := s.conn.Exec(ctx, `
		UPDATE nodes SET status = $2, updated_at = now() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return wrapErr("update node status", err)
	}
	if tag.RowsAffected() == 0 {
		return graph.NotFound("node", id)
	}
	return nil
}

func (s *Store) NodesMissingEmbedding(ctx context.Context, limit int) ([]*graph.Node, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.conn.Query(ctx, `
		SELECT `+nodeColumns+` FROM nodes
		WHERE status = 'active' AND embedding IS NULL
		ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, wrapErr("nodes missing embedding", err)
	}
	nodes, err := collectNodes(rows)
	return nodes, wrapErr("nodes missing embedding", err)
}

func (s *Store) OrphanedNodeIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT n.id FROM nodes n
		WHERE n.status = 'active'
		  AND NOT EXISTS (SELECT 1 FROM edges e WHERE e.from_node_id = n.id OR e.to_node_id = n.id)
		ORDER BY n.id`)
	if err != nil {
		return nil, wrapErr("orphaned nodes", err)
	}
	defer rows.Close()

	out := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, wrapErr("orphaned nodes", err)
		}
		out = append(out, id)
	}
	return out, wrapErr("orphaned nodes", rows.Err())
}

func (s *Store) TopNodesByClickThrough(ctx context.Context, limit int) ([]*graph.Node, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.conn.Query(ctx, `
		SELECT `+nodeColumns+` FROM nodes
		WHERE status = 'active'
		ORDER BY click_through_rate DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, wrapErr("top nodes", err)
	}
	nodes, err := collectNodes(rows)
	return nodes, wrapErr("top nodes", err)
}
