package pgx

import (
	"context"

	"github.com/pgvector/pgvector-go"

	"github.com/peakfunnel/intentgraph/pkg/graph"
)

// SaveClusters persists the in-memory cluster snapshot. Each save is an
// idempotent full-row overwrite keyed by cluster id.
func (s *Store) SaveClusters(ctx context.Context, clusters []*graph.IntentCluster) error {
	for _, cluster := range clusters {
		_, err := s.conn.Exec(ctx, `
			INSERT INTO intent_clusters (id, centroid, member_slugs, keywords)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET
				centroid = EXCLUDED.centroid,
				member_slugs = EXCLUDED.member_slugs,
				keywords = EXCLUDED.keywords,
				updated_at = now()`,
			cluster.ID, pgvector.NewVector(cluster.Centroid), cluster.Nodes, cluster.Keywords,
		)
		if err != nil {
			return wrapErr("save clusters", err)
		}
	}
	return nil
}

// LoadClusters restores the cluster snapshot, typically at startup.
func (s *Store) LoadClusters(ctx context.Context) ([]*graph.IntentCluster, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, centroid, member_slugs, keywords, created_at, updated_at
		FROM intent_clusters ORDER BY id`)
	if err != nil {
		return nil, wrapErr("load clusters", err)
	}
	defer rows.Close()

	out := make([]*graph.IntentCluster, 0)
	for rows.Next() {
		var (
			cluster  graph.IntentCluster
			centroid pgvector.Vector
		)
		err := rows.Scan(&cluster.ID, &centroid, &cluster.Nodes, &cluster.Keywords,
			&cluster.CreatedAt, &cluster.UpdatedAt)
		if err != nil {
			return nil, wrapErr("load clusters", err)
		}
		cluster.Centroid = centroid.Slice()
		out = append(out, &cluster)
	}
	return out, wrapErr("load clusters", rows.Err())
}
