package tm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func defaultSimConfig() SimConfig {
	return SimConfig{MaxSteps: 1000, Blank: Zero, EnableEscapee: true, EnablePeriod2: true}
}

// busyBeaverTwoState is the 2-state busy beaver: it writes 1,1,1,1 and
// halts, a machine whose behavior is well known and easy to check by hand.
func busyBeaverTwoState() Table {
	table := NewTable(2)
	table.Set(1, Zero, Transition{NextState: 2, Write: One, Move: MoveRight})
	table.Set(1, One, Transition{NextState: 2, Write: One, Move: MoveLeft})
	table.Set(2, Zero, Transition{NextState: 1, Write: One, Move: MoveLeft})
	table.Set(2, One, Transition{NextState: HaltState, Write: One, Move: MoveRight})
	return table
}

func TestSimulate_BusyBeaverTwoStateHaltsWithFourOnes(t *testing.T) {
	outcome := Simulate(busyBeaverTwoState(), defaultSimConfig())
	assert.Equal(t, StatusHalted, outcome.Status)
	assert.Equal(t, "1111", outcome.Output)
}

func TestSimulate_IsDeterministic(t *testing.T) {
	table := busyBeaverTwoState()
	first := Simulate(table, defaultSimConfig())
	second := Simulate(table, defaultSimConfig())
	assert.Equal(t, first, second)
}

// rightRunner never halts and never revisits a cell, the shape the escapee
// filter exists to catch.
func rightRunner(nStates int) Table {
	table := NewTable(nStates)
	for s := State(1); int(s) <= nStates; s++ {
		next := s + 1
		if int(next) > nStates {
			next = 1
		}
		table.Set(s, Zero, Transition{NextState: next, Write: Zero, Move: MoveRight})
		table.Set(s, One, Transition{NextState: next, Write: Zero, Move: MoveRight})
	}
	return table
}

func TestSimulate_EscapeeFilterCatchesRightRunner(t *testing.T) {
	outcome := Simulate(rightRunner(2), defaultSimConfig())
	assert.Equal(t, StatusNonHalting, outcome.Status)
	assert.Equal(t, ReasonEscapee, outcome.Reason)
}

// oscillator bounces the head between two cells forever without writing
// anything new, the shape the period-2 filter exists to catch.
func oscillator() Table {
	table := NewTable(2)
	table.Set(1, Zero, Transition{NextState: 2, Write: Zero, Move: MoveRight})
	table.Set(1, One, Transition{NextState: 2, Write: Zero, Move: MoveRight})
	table.Set(2, Zero, Transition{NextState: 1, Write: Zero, Move: MoveLeft})
	table.Set(2, One, Transition{NextState: 1, Write: Zero, Move: MoveLeft})
	return table
}

func TestSimulate_CycleTwoFilterCatchesOscillator(t *testing.T) {
	outcome := Simulate(oscillator(), defaultSimConfig())
	assert.Equal(t, StatusNonHalting, outcome.Status)
	assert.Equal(t, ReasonCycleTwo, outcome.Reason)
}

func TestSimulate_TimeoutWhenFiltersDisabled(t *testing.T) {
	cfg := SimConfig{MaxSteps: 50, Blank: Zero, EnableEscapee: false, EnablePeriod2: false}
	outcome := Simulate(oscillator(), cfg)
	assert.Equal(t, StatusNonHalting, outcome.Status)
	assert.Equal(t, ReasonTimeout, outcome.Reason)
	assert.Equal(t, uint64(50), outcome.Steps)
}

func TestHasNoHaltTransition(t *testing.T) {
	assert.True(t, HasNoHaltTransition(rightRunner(2)))
	assert.False(t, HasNoHaltTransition(busyBeaverTwoState()))
}
