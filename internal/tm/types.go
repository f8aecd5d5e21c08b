// Package tm implements the transition codec, enumerator, pre-run and
// runtime filters, and simulator for the (n, 2) Turing machine class used
// by the Coding Theorem Method.
package tm

import "fmt"

// Symbol is one of the two tape symbols.
type Symbol uint8

const (
	Zero Symbol = 0
	One  Symbol = 1
)

func (s Symbol) String() string {
	if s == One {
		return "1"
	}
	return "0"
}

// Complement returns the bitwise-flipped symbol.
func (s Symbol) Complement() Symbol {
	return 1 - s
}

// Move is the head displacement applied after a transition.
type Move int8

const (
	MoveLeft  Move = -1
	MoveNone  Move = 0
	MoveRight Move = 1
)

// State is a transition-table state; 0 is the distinguished halt state.
type State int32

// HaltState is the sink state: entering it terminates the machine.
const HaltState State = 0

// Transition is the action taken for one (state, symbol) pair.
type Transition struct {
	NextState State
	Write     Symbol
	Move      Move
}

// IsHalting reports whether this transition enters the halt state.
func (t Transition) IsHalting() bool {
	return t.NextState == HaltState
}

// Table is a total transition function for states 1..NStates over the
// two-symbol alphabet, stored flat: entry for (state, symbol) lives at
// index 2*(state-1)+int(symbol).
type Table struct {
	NStates int
	entries []Transition
}

// NewTable allocates a zero-valued table for the given state count. Every
// entry defaults to the (halt, write=0) transition until set.
func NewTable(nStates int) Table {
	return Table{NStates: nStates, entries: make([]Transition, 2*nStates)}
}

func (t Table) index(state State, sym Symbol) (int, error) {
	if state < 1 || int(state) > t.NStates {
		return 0, fmt.Errorf("tm: state %d out of range [1,%d]", state, t.NStates)
	}
	if sym != Zero && sym != One {
		return 0, fmt.Errorf("tm: symbol %d out of range", sym)
	}
	return 2*(int(state)-1) + int(sym), nil
}

// At returns the transition for (state, sym). State must be in 1..NStates.
func (t Table) At(state State, sym Symbol) Transition {
	idx, err := t.index(state, sym)
	if err != nil {
		panic(err)
	}
	return t.entries[idx]
}

// Set installs the transition for (state, sym).
func (t Table) Set(state State, sym Symbol, tr Transition) {
	idx, err := t.index(state, sym)
	if err != nil {
		panic(err)
	}
	t.entries[idx] = tr
}

// Entries returns the flat, big-endian-ordered entry slice (state 1/symbol
// 0 first), matching the codec's digit order.
func (t Table) Entries() []Transition {
	return t.entries
}

// Clone returns an independent copy of the table.
func (t Table) Clone() Table {
	out := NewTable(t.NStates)
	copy(out.entries, t.entries)
	return out
}

// Base returns the mixed-radix digit base for an n-state machine: 4n+2.
func Base(nStates int) uint64 {
	return uint64(4*nStates + 2)
}
