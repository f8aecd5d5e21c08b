package tm

import "fmt"

// Mode selects which subset of the machine-code space an Enumerator walks.
type Mode string

const (
	Raw     Mode = "raw"
	Reduced Mode = "reduced"
)

// Enumerator addresses a finite range of machine codes by index. It is
// stateless with respect to any particular index or batch: CodeAt(i) is a
// pure function, so two workers can compute disjoint index ranges without
// coordination (spec §5's "enumerator is stateless" requirement). Size and
// CodeAt are both O(1); nothing is materialized eagerly.
type Enumerator struct {
	nStates int
	mode    Mode
	base    uint64

	// reduced-mode fields
	subspaceSize     uint64
	allowedInitial   []uint64 // initial-digit values, one per allowed (next_state, write) pair
	rawSize          uint64
}

// New builds an Enumerator for the given state count and mode.
func New(nStates int, mode Mode) (*Enumerator, error) {
	if nStates < 1 {
		return nil, fmt.Errorf("tm: nStates must be positive, got %d", nStates)
	}
	rawSize, err := MaxCode(nStates)
	if err != nil {
		return nil, err
	}
	e := &Enumerator{nStates: nStates, mode: mode, base: Base(nStates), rawSize: rawSize}
	if mode == Reduced {
		if nStates < 2 {
			return nil, fmt.Errorf("tm: reduced enumeration requires nStates>=2, got %d", nStates)
		}
		entryCount := 2 * nStates
		subspace, err := powUint64(e.base, entryCount-1)
		if err != nil {
			return nil, err
		}
		e.subspaceSize = subspace
		// Allowed initial digits: (state=1, symbol=blank) transitions that
		// move right into a non-initial, non-halt state (§4.2 step c).
		for next := State(2); int(next) <= nStates; next++ {
			for _, write := range []Symbol{Zero, One} {
				digit, err := encodeDigit(nStates, Transition{NextState: next, Write: write, Move: MoveRight})
				if err != nil {
					return nil, err
				}
				e.allowedInitial = append(e.allowedInitial, digit)
			}
		}
	}
	return e, nil
}

func powUint64(base uint64, exp int) (uint64, error) {
	result := uint64(1)
	for i := 0; i < exp; i++ {
		next := result * base
		if base != 0 && next/base != result {
			return 0, fmt.Errorf("tm: overflow computing %d^%d", base, exp)
		}
		result = next
	}
	return result, nil
}

// NStates returns the state count this enumerator was built for.
func (e *Enumerator) NStates() int { return e.nStates }

// Mode returns raw or reduced.
func (e *Enumerator) Mode() Mode { return e.mode }

// Size returns the number of codes this enumerator addresses.
func (e *Enumerator) Size() uint64 {
	if e.mode == Raw {
		return e.rawSize
	}
	return uint64(len(e.allowedInitial)) * e.subspaceSize
}

// CodeAt returns the machine code at global index idx, 0 <= idx < Size().
// For raw enumeration this is the identity; for reduced enumeration the
// index space is partitioned into len(allowedInitial) contiguous blocks of
// subspaceSize tail-combinations each, matching the original enumerator's
// block/tail layout so the same (n, mode) always yields the same sequence.
func (e *Enumerator) CodeAt(idx uint64) (uint64, error) {
	if idx >= e.Size() {
		return 0, fmt.Errorf("tm: index %d out of range [0,%d)", idx, e.Size())
	}
	if e.mode == Raw {
		return idx, nil
	}
	block := idx / e.subspaceSize
	tail := idx % e.subspaceSize
	return e.allowedInitial[block]*e.subspaceSize + tail, nil
}

// SubspaceSize returns base^(2n-1), the number of tail combinations behind
// a fixed initial digit. Only meaningful in reduced mode; used by the
// aggregator's completion arithmetic (§4.6).
func (e *Enumerator) SubspaceSize() uint64 {
	return e.subspaceSize
}
