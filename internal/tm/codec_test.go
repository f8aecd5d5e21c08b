package tm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaxCode_KnownValues(t *testing.T) {
	// base(n) = 4n+2, exponent = 2n.
	n1, err := MaxCode(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(36), n1)

	n2, err := MaxCode(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(10000), n2)
}

func TestMaxCode_RejectsNonPositive(t *testing.T) {
	_, err := MaxCode(0)
	assert.Error(t, err)
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	for nStates := 1; nStates <= 5; nStates++ {
		maxCode, err := MaxCode(nStates)
		require.NoError(t, err)

		// Sampling every code for n=5 is ~2.7e13 iterations; walk a stride
		// instead so the test still exercises the full range cheaply.
		stride := maxCode / 997
		if stride == 0 {
			stride = 1
		}
		for code := uint64(0); code < maxCode; code += stride {
			table, err := Decode(code, nStates)
			require.NoError(t, err)
			assert.Equal(t, nStates, table.NStates)

			got, err := Encode(table)
			require.NoError(t, err)
			assert.Equal(t, code, got, "round trip mismatch for nStates=%d code=%d", nStates, code)
		}
	}
}

func TestDecode_RejectsOutOfRangeCode(t *testing.T) {
	maxCode, err := MaxCode(2)
	require.NoError(t, err)
	_, err = Decode(maxCode, 2)
	assert.Error(t, err)
}

func TestEncode_RejectsInvalidTable(t *testing.T) {
	table := NewTable(2)
	table.Set(1, Zero, Transition{NextState: 1, Write: Zero, Move: 0})
	_, err := Encode(table)
	assert.Error(t, err, "a non-halting transition with MoveNone should be rejected")
}
