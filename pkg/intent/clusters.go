package intent

import (
	"context"
	"sort"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/peakfunnel/intentgraph/pkg/graph"
	"github.com/peakfunnel/intentgraph/pkg/logger"
	"github.com/peakfunnel/intentgraph/pkg/vectormath"
)

// clusterSet is the thread-safe in-process cluster cache. Clusters are
// discovered lazily and periodically snapshotted to the store.
type clusterSet struct {
	mu       sync.RWMutex
	clusters map[string]*graph.IntentCluster
}

func newClusterSet() *clusterSet {
	return &clusterSet{clusters: make(map[string]*graph.IntentCluster)}
}

func (cs *clusterSet) replace(clusters []*graph.IntentCluster) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.clusters = make(map[string]*graph.IntentCluster, len(clusters))
	for _, c := range clusters {
		cs.clusters[c.ID] = c
	}
}

// bestMatch returns the cluster whose centroid is most similar to vec.
func (cs *clusterSet) bestMatch(vec []float32) (string, float64) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	bestID := ""
	bestSim := -1.0
	for id, cluster := range cs.clusters {
		sim := vectormath.CosineSimilarity(vec, cluster.Centroid)
		if sim > bestSim || (sim == bestSim && id < bestID) {
			bestID = id
			bestSim = sim
		}
	}
	return bestID, bestSim
}

func (cs *clusterSet) add(cluster *graph.IntentCluster) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.clusters[cluster.ID] = cluster
}

func (cs *clusterSet) addMember(clusterID, slug string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cluster, ok := cs.clusters[clusterID]
	if !ok {
		return
	}
	for _, existing := range cluster.Nodes {
		if existing == slug {
			return
		}
	}
	cluster.Nodes = append(cluster.Nodes, slug)
	cluster.UpdatedAt = time.Now()
}

func (cs *clusterSet) snapshot() []*graph.IntentCluster {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	out := make([]*graph.IntentCluster, 0, len(cs.clusters))
	for _, c := range cs.clusters {
		copied := *c
		copied.Centroid = append([]float32(nil), c.Centroid...)
		copied.Nodes = append([]string(nil), c.Nodes...)
		copied.Keywords = append([]string(nil), c.Keywords...)
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (cs *clusterSet) confidences(vec []float32) map[string]float64 {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	out := make(map[string]float64, len(cs.clusters))
	for id, cluster := range cs.clusters {
		sim := vectormath.CosineSimilarity(vec, cluster.Centroid)
		if sim < 0 {
			sim = 0
		}
		out[id] = sim
	}
	return out
}

// ClassifyIntent matches vec against all known cluster centroids. When
// the best match clears the clustering threshold its cluster id is
// returned; otherwise a new cluster is spawned with vec as centroid and
// keywords derived from text through the collaborator.
func (e *Engine) ClassifyIntent(ctx context.Context, vec []float32, text string) string {
	if id, sim := e.clusters.bestMatch(vec); id != "" && sim >= e.tuning.ClusterThreshold {
		return id
	}
	return e.spawnCluster(ctx, vec, text)
}

func (e *Engine) spawnCluster(ctx context.Context, vec []float32, text string) string {
	label := "general"
	var keywords []string
	if e.keywords != nil {
		if l, err := e.keywords.SummarizeShortLabel(ctx, text); err == nil && l != "" {
			label = l
		} else if err != nil {
			logger.Warn("[Intent][ClassifyIntent] Cluster labeling failed, using default", "err", err)
		}
		if kw, err := e.keywords.ExtractKeywords(ctx, text); err == nil {
			keywords = kw
		}
	}

	suffix, err := gonanoid.New(8)
	if err != nil {
		suffix = time.Now().Format("150405")
	}

	now := time.Now()
	cluster := &graph.IntentCluster{
		ID:        "intent-" + label + "-" + suffix,
		Centroid:  append([]float32(nil), vec...),
		Keywords:  keywords,
		CreatedAt: now,
		UpdatedAt: now,
	}
	e.clusters.add(cluster)
	logger.Debug("[Intent][ClassifyIntent] Spawned cluster", "cluster", cluster.ID)
	return cluster.ID
}

// RecomputeCentroids refreshes every cluster centroid as the arithmetic
// mean of its current members' vectors and persists the snapshot. Stale
// members without embeddings are skipped.
func (e *Engine) RecomputeCentroids(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, cluster := range e.clusters.snapshot() {
		g.Go(func() error {
			vectors := make([][]float32, 0, len(cluster.Nodes))
			for _, slug := range cluster.Nodes {
				node, err := e.store.GetNodeBySlug(gctx, slug)
				if err != nil || len(node.Embedding) == 0 {
					continue
				}
				vectors = append(vectors, node.Embedding)
			}
			if len(vectors) == 0 {
				return nil
			}

			centroid := vectormath.Centroid(vectors)
			e.clusters.mu.Lock()
			if live, ok := e.clusters.clusters[cluster.ID]; ok {
				live.Centroid = centroid
				live.UpdatedAt = time.Now()
			}
			e.clusters.mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return e.SaveSnapshot(ctx)
}

// SaveSnapshot persists the current cluster set.
func (e *Engine) SaveSnapshot(ctx context.Context) error {
	return e.store.SaveClusters(ctx, e.clusters.snapshot())
}

// LoadSnapshot restores clusters from the store, typically at startup.
// Store failures leave the cache empty; clusters rebuild organically.
func (e *Engine) LoadSnapshot(ctx context.Context) error {
	clusters, err := e.store.LoadClusters(ctx)
	if err != nil {
		logger.Warn("[Intent][LoadSnapshot] Could not restore clusters", "err", err)
		return err
	}
	e.clusters.replace(clusters)
	logger.Info("[Intent][LoadSnapshot] Restored clusters", "count", len(clusters))
	return nil
}
