// Package aggregate implements the output-frequency aggregator (C6): it
// accumulates halting/non-halting outcomes, merges associatively and
// commutatively across workers, and derives D(n,m) once an enumeration
// (raw or completed-reduced) has been fully processed.
package aggregate

import (
	"fmt"

	"github.com/arminwolf/ctm-estimator/internal/tm"
)

// Aggregator holds the counts table, the non-halting bucket, and the
// bookkeeping completion needs. The zero value is a valid empty
// aggregator and is the identity element for Merge.
type Aggregator struct {
	NStates int

	Counts         map[string]uint64
	NonHalting     map[tm.NonHaltReason]uint64
	TotalProcessed uint64
	TotalHalting   uint64

	CompletionApplied bool
}

// New returns an empty aggregator for the given state count.
func New(nStates int) *Aggregator {
	return &Aggregator{
		NStates:    nStates,
		Counts:     make(map[string]uint64),
		NonHalting: make(map[tm.NonHaltReason]uint64),
	}
}

// Record folds one machine's outcome into the aggregator.
func (a *Aggregator) Record(outcome tm.Outcome) {
	a.TotalProcessed++
	switch outcome.Status {
	case tm.StatusHalted:
		a.TotalHalting++
		a.Counts[outcome.Output]++
	case tm.StatusNonHalting:
		a.NonHalting[outcome.Reason]++
	}
}

// Merge folds other's counts into a, element-wise. Merge is associative and
// commutative (spec §3's invariant): callers may merge worker aggregators
// in any order.
func (a *Aggregator) Merge(other *Aggregator) {
	if other == nil {
		return
	}
	for s, c := range other.Counts {
		a.Counts[s] += c
	}
	for r, c := range other.NonHalting {
		a.NonHalting[r] += c
	}
	a.TotalProcessed += other.TotalProcessed
	a.TotalHalting += other.TotalHalting
}

// NonHaltingTotal sums every non-halting bucket.
func (a *Aggregator) NonHaltingTotal() uint64 {
	var total uint64
	for _, c := range a.NonHalting {
		total += c
	}
	return total
}

// ApplyCompletion lifts a reduced-enumeration aggregator's counts to the
// counts a raw enumeration over the same (n, filters, step budget) would
// have produced (spec §4.6). It must be called at most once.
func (a *Aggregator) ApplyCompletion(subspaceSize uint64) error {
	if a.CompletionApplied {
		return fmt.Errorf("aggregate: completion already applied")
	}
	completed, nonHalting, err := ApplyCompletionRules(a.Counts, a.NonHaltingTotal(), subspaceSize, a.NStates)
	if err != nil {
		return err
	}
	a.Counts = completed
	a.NonHalting = map[tm.NonHaltReason]uint64{tm.NonHaltReason("completed"): nonHalting}
	a.TotalHalting = sumCounts(completed)
	a.TotalProcessed = a.TotalHalting + nonHalting
	a.CompletionApplied = true
	return nil
}

func sumCounts(counts map[string]uint64) uint64 {
	var total uint64
	for _, c := range counts {
		total += c
	}
	return total
}

// Distribution is the finalized D(n,m): probability mass over halting
// output strings only.
type Distribution map[string]float64

// Finalize computes D(n,m)(s) = count(s) / total halting. It returns an
// empty distribution if no machine halted.
func (a *Aggregator) Finalize() Distribution {
	dist := make(Distribution, len(a.Counts))
	if a.TotalHalting == 0 {
		return dist
	}
	for s, c := range a.Counts {
		dist[s] = float64(c) / float64(a.TotalHalting)
	}
	return dist
}

// Clone returns a deep copy, used by workers to hand off a local aggregator
// without retaining aliasing into the map the driver will keep mutating.
func (a *Aggregator) Clone() *Aggregator {
	out := New(a.NStates)
	for s, c := range a.Counts {
		out.Counts[s] = c
	}
	for r, c := range a.NonHalting {
		out.NonHalting[r] = c
	}
	out.TotalProcessed = a.TotalProcessed
	out.TotalHalting = a.TotalHalting
	out.CompletionApplied = a.CompletionApplied
	return out
}
