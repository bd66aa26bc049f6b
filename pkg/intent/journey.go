package intent

import (
	"sort"
	"sync"

	"github.com/peakfunnel/intentgraph/pkg/graph"
)

// journeySet aggregates intent-to-intent transition statistics. Paths are
// derived from interaction history and rebuild organically after restarts.
type journeySet struct {
	mu    sync.RWMutex
	paths map[string]*graph.JourneyPath
}

func newJourneySet() *journeySet {
	return &journeySet{paths: make(map[string]*graph.JourneyPath)}
}

func journeyKey(from, to string) string {
	return from + ">" + to
}

// track records the most recent transition in a history. Only the last
// consecutive pair matters; earlier pairs were tracked when they happened.
// Self-transitions count: dwelling within one intent is a signal too.
func (js *journeySet) track(history []graph.Interaction) {
	if len(history) < 2 {
		return
	}
	from := history[len(history)-2].Intent
	to := history[len(history)-1].Intent
	if from == "" || to == "" {
		return
	}

	js.mu.Lock()
	defer js.mu.Unlock()

	key := journeyKey(from, to)
	path, ok := js.paths[key]
	if !ok {
		path = &graph.JourneyPath{From: from, To: to}
		js.paths[key] = path
	}
	path.Frequency++
	path.Weight += 0.1
	if path.Weight > 1 {
		path.Weight = 1
	}
}

// outgoing returns copies of all paths leaving an intent.
func (js *journeySet) outgoing(from string) []*graph.JourneyPath {
	js.mu.RLock()
	defer js.mu.RUnlock()

	var out []*graph.JourneyPath
	for _, p := range js.paths {
		if p.From == from {
			copied := *p
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].To < out[j].To })
	return out
}

// updateMetrics folds conversion and dwell-time evidence into a path.
// Conversion rate is an incremental mean over observations; average time
// is an exponential blend so recent behavior dominates.
func (js *journeySet) updateMetrics(from, to string, converted bool, timeSpentMs float64) {
	js.mu.Lock()
	defer js.mu.Unlock()

	key := journeyKey(from, to)
	path, ok := js.paths[key]
	if !ok {
		path = &graph.JourneyPath{From: from, To: to, Frequency: 1}
		js.paths[key] = path
	}

	observation := 0.0
	if converted {
		observation = 1.0
	}
	n := float64(path.Frequency)
	if n < 1 {
		n = 1
	}
	path.ConversionRate += (observation - path.ConversionRate) / n

	if timeSpentMs > 0 {
		if path.AverageTimeMs == 0 {
			path.AverageTimeMs = timeSpentMs
		} else {
			path.AverageTimeMs = 0.8*path.AverageTimeMs + 0.2*timeSpentMs
		}
	}
}
