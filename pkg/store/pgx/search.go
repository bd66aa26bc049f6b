package pgx

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/peakfunnel/intentgraph/pkg/graph"
	"github.com/peakfunnel/intentgraph/pkg/store"
)

// NearestNodes ranks active embedded nodes by cosine similarity to the
// query vector using the pgvector `<=>` operator, so the vector index
// serves the query. Similarity is 1 - cosine distance.
func (s *Store) NearestNodes(ctx context.Context, embedding []float32, topK int, filter store.NodeFilter) ([]store.NodeSimilarity, error) {
	if topK <= 0 {
		topK = 5
	}

	args := []any{pgvector.NewVector(embedding)}
	query := `
		SELECT ` + nodeColumns + `, 1 - (embedding <=> $1) AS similarity
		FROM nodes
		WHERE status = 'active' AND embedding IS NOT NULL`

	if len(filter.Types) > 0 {
		args = append(args, filter.Types)
		query += fmt.Sprintf(" AND node_type = ANY($%d)", len(args))
	}
	if len(filter.Verticals) > 0 {
		args = append(args, filter.Verticals)
		query += fmt.Sprintf(" AND vertical_id = ANY($%d)", len(args))
	}

	args = append(args, topK)
	query += fmt.Sprintf(" ORDER BY embedding <=> $1 LIMIT $%d", len(args))

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("nearest nodes", err)
	}
	defer rows.Close()

	out := make([]store.NodeSimilarity, 0, topK)
	for rows.Next() {
		var (
			node       graph.Node
			vec        *pgvector.Vector
			tags       []string
			similarity float64
		)
		err := rows.Scan(
			&node.ID, &node.Slug, &node.Title, &node.Description, &node.Type,
			&node.VerticalID, &node.Status, &vec, &node.ClickThroughRate,
			&node.Engagement, &node.ConversionRate, &tags,
			&node.CreatedAt, &node.UpdatedAt, &similarity,
		)
		if err != nil {
			return nil, wrapErr("nearest nodes", err)
		}
		if vec != nil {
			node.Embedding = vec.Slice()
		}
		node.IntentProfileTags = tags
		out = append(out, store.NodeSimilarity{Node: &node, Similarity: similarity})
	}
	return out, wrapErr("nearest nodes", rows.Err())
}
