package tm

import (
	"fmt"
	"math/bits"
)

// MaxCode returns base^(2*nStates), the exclusive upper bound of the machine
// code space for nStates. It errors instead of silently overflowing a
// uint64 — callers that need larger n should use a big-integer codec, which
// this package does not provide since CTM studies only small state counts
// (n is in the single digits; n=5 already yields base^10 ≈ 2.7e13).
func MaxCode(nStates int) (uint64, error) {
	if nStates < 1 {
		return 0, fmt.Errorf("tm: nStates must be positive, got %d", nStates)
	}
	base := Base(nStates)
	exp := 2 * nStates
	result := uint64(1)
	for i := 0; i < exp; i++ {
		hi, lo := bits.Mul64(result, base)
		if hi != 0 {
			return 0, fmt.Errorf("tm: base^%d overflows uint64 for nStates=%d", exp, nStates)
		}
		result = lo
	}
	return result, nil
}

// encodeDigit packs one transition into its base-(4n+2) digit.
func encodeDigit(nStates int, tr Transition) (uint64, error) {
	if tr.IsHalting() {
		if tr.Write != Zero && tr.Write != One {
			return 0, fmt.Errorf("tm: invalid write symbol %d on halt transition", tr.Write)
		}
		return uint64(tr.Write), nil
	}
	if tr.NextState < 1 || int(tr.NextState) > nStates {
		return 0, fmt.Errorf("tm: next state %d out of range [1,%d]", tr.NextState, nStates)
	}
	var moveIdx uint64
	switch tr.Move {
	case MoveLeft:
		moveIdx = 0
	case MoveRight:
		moveIdx = 1
	default:
		return 0, fmt.Errorf("tm: non-halt transition must move L or R, got %d", tr.Move)
	}
	writeIdx := uint64(tr.Write)
	return 2 + uint64(tr.NextState-1)*4 + (writeIdx*2 + moveIdx), nil
}

// decodeDigit unpacks one base-(4n+2) digit into a transition.
func decodeDigit(nStates int, d uint64) (Transition, error) {
	base := Base(nStates)
	if d >= base {
		return Transition{}, fmt.Errorf("tm: digit %d out of range for base %d", d, base)
	}
	if d < 2 {
		return Transition{NextState: HaltState, Write: Symbol(d), Move: MoveNone}, nil
	}
	e := d - 2
	nextState := State(1 + e/4)
	inner := e % 4
	write := Symbol(inner / 2)
	move := MoveLeft
	if inner%2 == 1 {
		move = MoveRight
	}
	return Transition{NextState: nextState, Write: write, Move: move}, nil
}

// Encode places a transition table in bijection with an integer in
// [0, Base(nStates)^(2*nStates)). Entries are consumed in the table's
// natural (state 1/symbol 0 first) order, most significant digit first.
func Encode(t Table) (uint64, error) {
	var code uint64
	base := Base(t.NStates)
	for _, tr := range t.entries {
		digit, err := encodeDigit(t.NStates, tr)
		if err != nil {
			return 0, err
		}
		code = code*base + digit
	}
	return code, nil
}

// Decode inverts Encode: it recovers the unique transition table whose
// encoding is code, for the given state count. It rejects any code outside
// [0, MaxCode(nStates)).
func Decode(code uint64, nStates int) (Table, error) {
	maxCode, err := MaxCode(nStates)
	if err != nil {
		return Table{}, err
	}
	if code >= maxCode {
		return Table{}, fmt.Errorf("tm: code %d out of range [0,%d)", code, maxCode)
	}
	base := Base(nStates)
	total := 2 * nStates
	digits := make([]uint64, total)
	remainder := code
	for i := total - 1; i >= 0; i-- {
		digits[i] = remainder % base
		remainder /= base
	}
	table := NewTable(nStates)
	for i, d := range digits {
		tr, err := decodeDigit(nStates, d)
		if err != nil {
			return Table{}, err
		}
		table.entries[i] = tr
	}
	return table, nil
}
