// Package graph defines the domain model of the semantic intent graph:
// content nodes, typed weighted edges, per-identity intent state, intent
// clusters and journey-path aggregates, together with the error taxonomy
// and the edge-type inference heuristic shared by the engines.
package graph

import "time"

// NodeType classifies a node's content surface. Fixed at creation.
type NodeType string

const (
	NodeTypePage     NodeType = "page"
	NodeTypeQuiz     NodeType = "quiz"
	NodeTypeOffer    NodeType = "offer"
	NodeTypeBlogPost NodeType = "blog_post"
	NodeTypeCTABlock NodeType = "cta_block"
)

// NodeStatus tracks a node's lifecycle. Only active nodes participate in
// search and recommendation; nodes are archived instead of deleted.
type NodeStatus string

const (
	NodeStatusActive   NodeStatus = "active"
	NodeStatusDraft    NodeStatus = "draft"
	NodeStatusArchived NodeStatus = "archived"
)

// EdgeType classifies the relationship an edge expresses. Assigned once by
// the inference heuristic and never reassigned automatically.
type EdgeType string

const (
	EdgeLeadsTo       EdgeType = "leads_to"
	EdgeSolves        EdgeType = "solves"
	EdgeRelatedTo     EdgeType = "related_to"
	EdgeUpsellFrom    EdgeType = "upsell_from"
	EdgeInfluences    EdgeType = "influences"
	EdgeMatchesIntent EdgeType = "matches_intent"
)

// EdgeOrigin records how an edge came to exist. Informational only.
type EdgeOrigin string

const (
	OriginSystem EdgeOrigin = "system"
	OriginAuto   EdgeOrigin = "auto"
	OriginManual EdgeOrigin = "manual"
)

// Node is a unit of content, offer, or interaction surface.
type Node struct {
	ID          int64      `json:"id"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Type        NodeType   `json:"node_type"`
	VerticalID  string     `json:"vertical_id"`
	Status      NodeStatus `json:"status"`

	// Embedding is nil until computed; nodes with nil embeddings are
	// excluded from similarity search and queued for re-embedding.
	Embedding []float32 `json:"embedding,omitempty"`

	ClickThroughRate float64 `json:"click_through_rate"`
	Engagement       float64 `json:"engagement"`
	ConversionRate   float64 `json:"conversion_rate"`

	IntentProfileTags []string `json:"intent_profile_tags,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Active reports whether the node participates in traversal and search.
func (n *Node) Active() bool {
	return n != nil && n.Status == NodeStatusActive
}

// EmbeddingText is the text a node's vector is derived from.
func (n *Node) EmbeddingText() string {
	if n.Description == "" {
		return n.Title
	}
	return n.Title + " " + n.Description
}

// Edge is a directed, typed relationship between two nodes. Edges are
// deactivated rather than deleted so history survives.
type Edge struct {
	ID         int64    `json:"id"`
	FromNodeID int64    `json:"from_node_id"`
	ToNodeID   int64    `json:"to_node_id"`
	Type       EdgeType `json:"edge_type"`

	// Weight is affinity strength in [0,1]; decays without reinforcement.
	Weight float64 `json:"weight"`
	// Confidence is statistical trust in [0,1]; grows with click and
	// conversion evidence, decays slowly without it.
	Confidence float64 `json:"confidence"`

	ClickCount      int64 `json:"click_count"`
	ConversionCount int64 `json:"conversion_count"`

	IsActive  bool       `json:"is_active"`
	CreatedBy EdgeOrigin `json:"created_by"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Interaction is one entry of an identity's journey history.
type Interaction struct {
	NodeID         int64     `json:"node_id"`
	NodeType       NodeType  `json:"node_type"`
	Intent         string    `json:"intent,omitempty"`
	IntentStrength float64   `json:"intent_strength"`
	Timestamp      time.Time `json:"timestamp"`
}

// DefaultArchetype labels an identity whose dominant pattern is unknown.
const DefaultArchetype = "explorer"

// UserIntentVector is the running intent state for one identity.
type UserIntentVector struct {
	Identity string `json:"identity"`

	// IntentVector is an exponential blend of the embeddings of recently
	// visited nodes.
	IntentVector []float32 `json:"intent_vector,omitempty"`

	CurrentArchetype string  `json:"current_archetype"`
	CurrentIntent    string  `json:"current_intent,omitempty"`
	Strength         float64 `json:"strength"`

	// History is a ring buffer of recent interactions; the oldest entries
	// drop silently once the cap is reached.
	History []Interaction `json:"history"`

	ClusterConfidence map[string]float64 `json:"cluster_confidence,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// AppendInteraction records an interaction, enforcing the history cap at
// the point of insertion.
func (u *UserIntentVector) AppendInteraction(in Interaction, limit int) {
	u.History = append(u.History, in)
	if limit > 0 && len(u.History) > limit {
		u.History = u.History[len(u.History)-limit:]
	}
}

// IntentCluster is a dynamically discovered semantic group. Clusters live
// in process memory with a persisted snapshot; they are not canonical data.
type IntentCluster struct {
	ID       string    `json:"id"`
	Centroid []float32 `json:"centroid"`
	Nodes    []string  `json:"nodes,omitempty"`
	Keywords []string  `json:"keywords,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JourneyPath aggregates transition statistics between two intents. It is
// derived from raw interaction history and can always be rebuilt.
type JourneyPath struct {
	From string `json:"from"`
	To   string `json:"to"`

	Weight         float64 `json:"weight"`
	Frequency      int64   `json:"frequency"`
	ConversionRate float64 `json:"conversion_rate"`
	AverageTimeMs  float64 `json:"average_time_ms"`
}

// Identity names the subject of intent tracking. At least one field must
// be set; the first non-empty of user, session, fingerprint is the key.
type Identity struct {
	UserID      string `json:"user_id,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Key returns the canonical identity key, or "" if no field is set.
func (id Identity) Key() string {
	switch {
	case id.UserID != "":
		return "user:" + id.UserID
	case id.SessionID != "":
		return "session:" + id.SessionID
	case id.Fingerprint != "":
		return "device:" + id.Fingerprint
	}
	return ""
}

// Recommendation is one ranked, justified propagation result.
type Recommendation struct {
	Node      *Node    `json:"node"`
	EdgeType  EdgeType `json:"edge_type"`
	Score     float64  `json:"score"`
	Reasoning string   `json:"reasoning"`
}
