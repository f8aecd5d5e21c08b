package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arminwolf/ctm-estimator/internal/tm"
)

func halted(output string) tm.Outcome {
	return tm.Outcome{Status: tm.StatusHalted, Output: output}
}

func nonHalting(reason tm.NonHaltReason) tm.Outcome {
	return tm.Outcome{Status: tm.StatusNonHalting, Reason: reason}
}

func TestRecord_TracksHaltingAndNonHaltingSeparately(t *testing.T) {
	a := New(2)
	a.Record(halted("1111"))
	a.Record(halted("1111"))
	a.Record(halted("0"))
	a.Record(nonHalting(tm.ReasonTimeout))

	assert.Equal(t, uint64(4), a.TotalProcessed)
	assert.Equal(t, uint64(3), a.TotalHalting)
	assert.Equal(t, uint64(2), a.Counts["1111"])
	assert.Equal(t, uint64(1), a.Counts["0"])
	assert.Equal(t, uint64(1), a.NonHalting[tm.ReasonTimeout])
}

func TestMerge_IsAssociativeAndCommutative(t *testing.T) {
	a1 := New(2)
	a1.Record(halted("1111"))
	a1.Record(nonHalting(tm.ReasonTimeout))

	a2 := New(2)
	a2.Record(halted("1111"))
	a2.Record(halted("0"))

	a3 := New(2)
	a3.Record(nonHalting(tm.ReasonEscapee))

	leftFirst := a1.Clone()
	leftFirst.Merge(a2)
	leftFirst.Merge(a3)

	rightFirst := a3.Clone()
	rightFirst.Merge(a2)
	rightFirst.Merge(a1)

	assert.Equal(t, leftFirst.Counts, rightFirst.Counts)
	assert.Equal(t, leftFirst.NonHalting, rightFirst.NonHalting)
	assert.Equal(t, leftFirst.TotalHalting, rightFirst.TotalHalting)
	assert.Equal(t, leftFirst.TotalProcessed, rightFirst.TotalProcessed)
}

func TestMerge_NilIsIdentity(t *testing.T) {
	a := New(2)
	a.Record(halted("1111"))
	before := a.Clone()
	a.Merge(nil)
	assert.Equal(t, before.Counts, a.Counts)
}

func TestFinalize_DistributionSumsToOne(t *testing.T) {
	a := New(2)
	a.Record(halted("1111"))
	a.Record(halted("1111"))
	a.Record(halted("0"))
	a.Record(halted("11"))

	dist := a.Finalize()
	var sum float64
	for _, p := range dist {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
}

func TestFinalize_EmptyWhenNothingHalted(t *testing.T) {
	a := New(2)
	a.Record(nonHalting(tm.ReasonTimeout))
	dist := a.Finalize()
	assert.Empty(t, dist)
}

func TestApplyCompletion_RejectsSecondCall(t *testing.T) {
	a := New(2)
	a.Record(halted("1"))
	require.NoError(t, a.ApplyCompletion(1))
	assert.Error(t, a.ApplyCompletion(1))
}

// TestApplyCompletion_RawReducedEquivalence runs the full n=2 raw space and
// the full n=2 reduced space, applies completion to the reduced result, and
// checks the two aggregators land on the same halting distribution — the
// invariant the reduced enumeration's completion arithmetic exists to
// preserve.
func TestApplyCompletion_RawReducedEquivalence(t *testing.T) {
	const nStates = 2
	const maxSteps = 200
	simCfg := tm.SimConfig{MaxSteps: maxSteps, Blank: tm.Zero, EnableEscapee: true, EnablePeriod2: true}

	rawEnum, err := tm.New(nStates, tm.Raw)
	require.NoError(t, err)
	rawAgg := New(nStates)
	for idx := uint64(0); idx < rawEnum.Size(); idx++ {
		code, err := rawEnum.CodeAt(idx)
		require.NoError(t, err)
		table, err := tm.Decode(code, nStates)
		require.NoError(t, err)
		if tm.HasNoHaltTransition(table) {
			rawAgg.Record(nonHalting(tm.ReasonNoHaltTransition))
			continue
		}
		rawAgg.Record(tm.Simulate(table, simCfg))
	}

	reducedEnum, err := tm.New(nStates, tm.Reduced)
	require.NoError(t, err)
	reducedAgg := New(nStates)
	for idx := uint64(0); idx < reducedEnum.Size(); idx++ {
		code, err := reducedEnum.CodeAt(idx)
		require.NoError(t, err)
		table, err := tm.Decode(code, nStates)
		require.NoError(t, err)
		if tm.HasNoHaltTransition(table) {
			reducedAgg.Record(nonHalting(tm.ReasonNoHaltTransition))
			continue
		}
		reducedAgg.Record(tm.Simulate(table, simCfg))
	}
	require.NoError(t, reducedAgg.ApplyCompletion(reducedEnum.SubspaceSize()))

	assert.Equal(t, rawAgg.TotalHalting, reducedAgg.TotalHalting)
	assert.Equal(t, rawAgg.Counts, reducedAgg.Counts)
}
