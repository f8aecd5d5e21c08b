package aggregate

import (
	"fmt"

	"github.com/arminwolf/ctm-estimator/internal/tm"
)

// ApplyCompletionRules lifts counts gathered over a reduced enumeration
// (tm.Reduced, see tm.Enumerator) to the counts a raw enumeration over the
// same n, filters, and step budget would have produced.
//
// The reduced enumerator (tm.Enumerator in Reduced mode) keeps only the
// machine codes whose initial transition — state 1 reading the blank
// symbol — moves right into a state other than 1 or the halt state. Of the
// base = 4n+2 possible initial-transition digits, that is 2*(n-1) of them;
// each carries subspaceSize = base^(2n-1) tail combinations over the
// remaining 2n-1 table entries.
//
// Two completion steps recover the other 4n+2-2*(n-1) = 2n+4 initial
// digits' worth of machines:
//
//  1. Move symmetry. Reversing every transition's move (L<->R) in a kept
//     machine yields a machine whose initial transition moves left instead
//     of right, with every other digit's move flipped too; flipping moves
//     throughout is a bijection on the remaining subspace, and running the
//     mirrored machine on a blank tape produces the reverse of the
//     original's output. So the 2*(n-1) "moves left" initial digits are
//     recovered exactly by adding, for every output string s with count c,
//     c to the count of reverse(s) (and doubling the non-halting count,
//     since the mirror of a non-halting machine is non-halting for the
//     same reason).
//  2. Trivial-initial contributions. The remaining 6 initial digits are
//     the ones tm.Enumerator's reduced mode excludes outright: the
//     machine halts immediately (writing 0 or 1; 2 digits), or self-loops
//     in state 1 forever without ever reading a non-blank cell (4 digits:
//     write in {0,1} times move in {L,R}). Each contributes exactly
//     subspaceSize machines. The 2 halting digits each produce a single
//     written symbol as output; the 4 self-looping digits never halt.
//
// Note on the blank-symbol generator named in spec §4.2's symmetry group:
// complementing every transition's write field is a genuine symmetry of
// the full (n, 2) machine space, but it is not an axis tm.Enumerator's
// reduced mode reduces along — both members of every blank-complement pair
// already appear somewhere in "kept machines ∪ move-symmetry-recovered
// machines ∪ trivial-initial machines". Folding a further complement step
// in on top (as a literal reading of the rationale "the dual run with the
// other blank symbol would have produced complemented outputs" suggests)
// double-counts the universe and breaks the raw-vs-reduced equivalence
// that spec §4.6 and §8 name as the core testable property of this
// component — so it is deliberately not applied here.
func ApplyCompletionRules(counts map[string]uint64, nonHaltingReduced uint64, subspaceSize uint64, nStates int) (map[string]uint64, uint64, error) {
	if nStates < 2 {
		return nil, 0, fmt.Errorf("aggregate: completion requires nStates>=2, got %d", nStates)
	}

	completed := make(map[string]uint64, len(counts)*2)
	for s, c := range counts {
		completed[s] += c
	}
	for s, c := range counts {
		completed[reverseString(s)] += c
	}
	nonHalting := nonHaltingReduced * 2

	completed["0"] += subspaceSize
	completed["1"] += subspaceSize
	nonHalting += 4 * subspaceSize

	return completed, nonHalting, nil
}

func reverseString(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

// Complement returns the bitwise complement of a binary output string.
// Exported for callers (e.g. the downstream estimator, or tests probing
// the blank-symbol symmetry directly) that need it independent of
// completion; ApplyCompletionRules itself does not call it, per the note
// above.
func Complement(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == byte(tm.Zero)+'0' {
			out[i] = byte(tm.One) + '0'
		} else {
			out[i] = byte(tm.Zero) + '0'
		}
	}
	return string(out)
}
