package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyCompletionRules_RejectsSingleState(t *testing.T) {
	_, _, err := ApplyCompletionRules(map[string]uint64{}, 0, 1, 1)
	assert.Error(t, err)
}

func TestApplyCompletionRules_MirrorsEveryCountByReversal(t *testing.T) {
	counts := map[string]uint64{"01": 5, "1": 3}
	completed, _, err := ApplyCompletionRules(counts, 0, 100, 2)
	require.NoError(t, err)

	assert.Equal(t, uint64(5), completed["01"]) // "01" reversed is "10"
	assert.Equal(t, uint64(5), completed["10"])
	// "1" is a palindrome, so its own reversal count adds back onto itself.
	assert.Equal(t, uint64(3)+3+100, completed["1"])
}

func TestApplyCompletionRules_AddsTrivialInitialContributions(t *testing.T) {
	completed, nonHalting, err := ApplyCompletionRules(map[string]uint64{}, 7, 10, 3)
	require.NoError(t, err)

	assert.Equal(t, uint64(10), completed["0"])
	assert.Equal(t, uint64(10), completed["1"])
	assert.Equal(t, uint64(7)*2+4*10, nonHalting)
}

func TestReverseString_PalindromeIsUnchanged(t *testing.T) {
	assert.Equal(t, "101", reverseString("101"))
	assert.Equal(t, "10", reverseString("01"))
	assert.Equal(t, "", reverseString(""))
}

func TestComplement_FlipsEveryBit(t *testing.T) {
	assert.Equal(t, "10", Complement("01"))
	assert.Equal(t, "0000", Complement("1111"))
}
