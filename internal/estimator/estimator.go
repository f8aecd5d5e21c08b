// Package estimator turns a frequency distribution file into the coding
// theorem's complexity estimate for individual strings: K(s) ~= -log2(D(s)).
package estimator

import (
	"math"
	"sort"

	"github.com/arminwolf/ctm-estimator/internal/distfile"
)

// Estimator answers complexity queries against one loaded distribution.
type Estimator struct {
	dist map[string]float64
}

// New builds an Estimator from a loaded distribution file. If the file
// stored raw_counts instead of a normalized distribution, New normalizes
// them by halting_total first.
func New(f distfile.File) *Estimator {
	dist := f.Distribution
	if dist == nil && f.RawCounts != nil && f.HaltingTotal > 0 {
		dist = make(map[string]float64, len(f.RawCounts))
		for s, c := range f.RawCounts {
			dist[s] = float64(c) / float64(f.HaltingTotal)
		}
	}
	return &Estimator{dist: dist}
}

// EstimateK returns the coding-theorem complexity estimate for s:
// -log2(D(s)), or +Inf if s never appears as a halting output in the
// distribution (it was never produced, or produced with mass too small to
// have survived the run's sample size).
func (e *Estimator) EstimateK(s string) float64 {
	p, ok := e.dist[s]
	if !ok || p <= 0 {
		return math.Inf(1)
	}
	return -math.Log2(p)
}

// RankedString pairs a string with its probability and derived complexity,
// for presentation.
type RankedString struct {
	String      string
	Probability float64
	Complexity  float64
}

// RankedStrings returns the topN most probable (least complex) strings in
// the distribution, most probable first. Ties break by string value for
// deterministic output.
func (e *Estimator) RankedStrings(topN int) []RankedString {
	out := make([]RankedString, 0, len(e.dist))
	for s, p := range e.dist {
		out = append(out, RankedString{String: s, Probability: p, Complexity: -math.Log2(p)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Probability != out[j].Probability {
			return out[i].Probability > out[j].Probability
		}
		return out[i].String < out[j].String
	})
	if topN > 0 && topN < len(out) {
		out = out[:topN]
	}
	return out
}
