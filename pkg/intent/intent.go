// Package intent maintains per-identity intent state: online clustering of
// embedded interactions, exponential blending of intent vectors, journey
// path statistics and next-intent prediction. All state is held in process
// memory with periodic snapshots; losing it degrades personalization, not
// correctness.
package intent

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/peakfunnel/intentgraph/pkg/embed"
	"github.com/peakfunnel/intentgraph/pkg/graph"
	"github.com/peakfunnel/intentgraph/pkg/logger"
	"github.com/peakfunnel/intentgraph/pkg/semantic"
	"github.com/peakfunnel/intentgraph/pkg/store"
	"github.com/peakfunnel/intentgraph/pkg/vectormath"
)

// Engine is the intent tracking engine. Safe for concurrent use.
type Engine struct {
	semantic *semantic.Engine
	store    store.GraphStore
	keywords embed.KeywordClient
	tuning   graph.Tuning

	clusters *clusterSet
	journeys *journeySet

	profileMu sync.RWMutex
	profiles  map[string]*graph.UserIntentVector
}

type Option func(*Engine)

// WithKeywordClient sets the collaborator used to label new clusters.
func WithKeywordClient(kc embed.KeywordClient) Option {
	return func(e *Engine) { e.keywords = kc }
}

func New(sem *semantic.Engine, tuning graph.Tuning, opts ...Option) *Engine {
	e := &Engine{
		semantic: sem,
		store:    sem.Store(),
		keywords: embed.NewLocalKeywordClient(5),
		tuning:   tuning,
		clusters: newClusterSet(),
		journeys: newJourneySet(),
		profiles: make(map[string]*graph.UserIntentVector),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analysis is the result of one AnalyzeUserIntent call.
type Analysis struct {
	Identity          string                 `json:"identity"`
	Intent            string                 `json:"intent"`
	Archetype         string                 `json:"archetype"`
	Strength          float64                `json:"strength"`
	ClusterConfidence map[string]float64     `json:"cluster_confidence"`
	Predictions       []Prediction           `json:"predictions,omitempty"`
	Related           []store.NodeSimilarity `json:"related,omitempty"`
}

// Prediction is one likely next intent with its observed probability.
type Prediction struct {
	Intent      string  `json:"intent"`
	Probability float64 `json:"probability"`
}

// AnalyzeParams describes one observed interaction.
type AnalyzeParams struct {
	Identity graph.Identity
	// Content is the text signal of the interaction (query, page text,
	// quiz answer). Required.
	Content string
	// Node is the visited node, when the interaction is tied to one.
	Node *graph.Node
}

// AnalyzeUserIntent ingests one interaction: embeds the content, assigns
// it to an intent cluster, blends it into the identity's intent vector,
// records history and journey transitions, and returns the updated state
// with next-intent predictions and related content.
func (e *Engine) AnalyzeUserIntent(ctx context.Context, params AnalyzeParams) (*Analysis, error) {
	key := params.Identity.Key()
	if key == "" {
		return nil, graph.Validationf("identity", "at least one of user_id, session_id, fingerprint is required")
	}
	if params.Content == "" {
		return nil, graph.Validationf("content", "must not be empty")
	}

	vec := e.semantic.EmbedQuery(ctx, params.Content)
	intentID := e.ClassifyIntent(ctx, vec, params.Content)
	if params.Node != nil && params.Node.Slug != "" {
		e.clusters.addMember(intentID, params.Node.Slug)
	}

	profile := e.updateProfile(key, vec, intentID, params.Node)
	e.journeys.track(profile.History)

	predictions := e.PredictNextIntents(profile.History)

	related, err := e.semantic.SemanticSearch(ctx, params.Content, semantic.SearchOptions{TopK: e.tuning.TopK})
	if err != nil {
		logger.Warn("[Intent][AnalyzeUserIntent] Related lookup failed", "identity", key, "err", err)
		related = nil
	}

	return &Analysis{
		Identity:          key,
		Intent:            intentID,
		Archetype:         profile.CurrentArchetype,
		Strength:          profile.Strength,
		ClusterConfidence: profile.ClusterConfidence,
		Predictions:       predictions,
		Related:           related,
	}, nil
}

// updateProfile blends vec into the identity's intent vector and appends
// the interaction to its history.
func (e *Engine) updateProfile(key string, vec []float32, intentID string, node *graph.Node) *graph.UserIntentVector {
	e.profileMu.Lock()
	defer e.profileMu.Unlock()

	profile, ok := e.profiles[key]
	if !ok {
		profile = &graph.UserIntentVector{
			Identity:         key,
			CurrentArchetype: graph.DefaultArchetype,
		}
		e.profiles[key] = profile
	}

	profile.IntentVector = vectormath.Blend(profile.IntentVector, vec, e.tuning.BlendAlpha)
	profile.CurrentIntent = intentID
	profile.Strength++
	if profile.Strength > e.tuning.StrengthCeiling {
		profile.Strength = e.tuning.StrengthCeiling
	}

	interaction := graph.Interaction{
		Intent:         intentID,
		IntentStrength: profile.Strength,
		Timestamp:      time.Now(),
	}
	if node != nil {
		interaction.NodeID = node.ID
		interaction.NodeType = node.Type
	}
	profile.AppendInteraction(interaction, e.tuning.HistoryLimit)

	profile.CurrentArchetype = deriveArchetype(profile.History)
	profile.ClusterConfidence = e.clusters.confidences(profile.IntentVector)
	profile.UpdatedAt = time.Now()

	return cloneProfile(profile)
}

// RecordVisit folds a visited node's embedding into an identity's intent
// state without running the full analysis pipeline. Used by propagation
// when serving recommendations for a concrete node.
func (e *Engine) RecordVisit(ctx context.Context, key string, node *graph.Node) *graph.UserIntentVector {
	if key == "" || node == nil {
		return nil
	}
	var intentID string
	if len(node.Embedding) > 0 {
		intentID = e.ClassifyIntent(ctx, node.Embedding, node.EmbeddingText())
		e.clusters.addMember(intentID, node.Slug)
	}

	vec := node.Embedding
	if len(vec) == 0 {
		e.profileMu.RLock()
		if existing, ok := e.profiles[key]; ok {
			vec = existing.IntentVector
		}
		e.profileMu.RUnlock()
	}
	return e.updateProfile(key, vec, intentID, node)
}

// Profile returns a copy of the identity's current intent state, or nil
// when the identity has never been seen.
func (e *Engine) Profile(key string) *graph.UserIntentVector {
	e.profileMu.RLock()
	defer e.profileMu.RUnlock()
	profile, ok := e.profiles[key]
	if !ok {
		return nil
	}
	return cloneProfile(profile)
}

// PredictNextIntents ranks likely next intents from journey statistics.
// Fewer than two history entries yield no prediction.
func (e *Engine) PredictNextIntents(history []graph.Interaction) []Prediction {
	if len(history) < 2 {
		return nil
	}
	current := history[len(history)-1].Intent
	if current == "" {
		return nil
	}

	outgoing := e.journeys.outgoing(current)
	if len(outgoing) == 0 {
		return nil
	}

	var total int64
	for _, p := range outgoing {
		total += p.Frequency
	}

	predictions := make([]Prediction, 0, len(outgoing))
	for _, p := range outgoing {
		predictions = append(predictions, Prediction{
			Intent:      p.To,
			Probability: float64(p.Frequency) / float64(total),
		})
	}
	sort.Slice(predictions, func(i, j int) bool {
		if predictions[i].Probability != predictions[j].Probability {
			return predictions[i].Probability > predictions[j].Probability
		}
		return predictions[i].Intent < predictions[j].Intent
	})
	if len(predictions) > e.tuning.TopK {
		predictions = predictions[:e.tuning.TopK]
	}
	return predictions
}

// UpdateJourneyMetrics folds conversion and dwell-time evidence into the
// transition between two intents.
func (e *Engine) UpdateJourneyMetrics(from, to string, converted bool, timeSpentMs float64) {
	e.journeys.updateMetrics(from, to, converted, timeSpentMs)
}

// deriveArchetype labels the dominant interaction pattern. Quiz-heavy
// histories read as researchers, offer-heavy as buyers.
func deriveArchetype(history []graph.Interaction) string {
	if len(history) == 0 {
		return graph.DefaultArchetype
	}
	counts := make(map[graph.NodeType]int)
	for _, in := range history {
		if in.NodeType != "" {
			counts[in.NodeType]++
		}
	}
	half := len(history) / 2
	switch {
	case counts[graph.NodeTypeQuiz] > half:
		return "researcher"
	case counts[graph.NodeTypeOffer] > half:
		return "buyer"
	case counts[graph.NodeTypeBlogPost] > half:
		return "reader"
	}
	return graph.DefaultArchetype
}

func cloneProfile(p *graph.UserIntentVector) *graph.UserIntentVector {
	copied := *p
	copied.IntentVector = append([]float32(nil), p.IntentVector...)
	copied.History = append([]graph.Interaction(nil), p.History...)
	copied.ClusterConfidence = make(map[string]float64, len(p.ClusterConfidence))
	for k, v := range p.ClusterConfidence {
		copied.ClusterConfidence[k] = v
	}
	return &copied
}
