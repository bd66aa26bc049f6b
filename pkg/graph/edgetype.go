package graph

// InferEdgeType picks the edge type for an auto-generated connection from
// a similarity-ranked candidate. Rules are evaluated in order; the first
// match wins.
func InferEdgeType(source, target *Node) EdgeType {
	switch {
	case source.Type == NodeTypeQuiz && target.Type == NodeTypeOffer:
		return EdgeLeadsTo
	case source.Type == NodeTypeBlogPost && target.Type == NodeTypeCTABlock:
		return EdgeInfluences
	case source.Type == NodeTypePage && target.Type == NodeTypeQuiz:
		return EdgeLeadsTo
	case source.Type == target.Type:
		return EdgeRelatedTo
	case source.VerticalID != "" && source.VerticalID == target.VerticalID:
		return EdgeRelatedTo
	case target.Type == NodeTypeOffer && source.Type != NodeTypeOffer:
		return EdgeUpsellFrom
	}
	return EdgeRelatedTo
}

// InitialEdgeScores derives the starting weight and confidence for an
// auto-generated edge. Weight takes the similarity directly; confidence is
// dampened because untested edges start less trusted than evidence-backed
// ones.
func InitialEdgeScores(similarity, dampening float64) (weight, confidence float64) {
	weight = clamp01(similarity)
	confidence = clamp01(similarity * dampening)
	return weight, confidence
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
