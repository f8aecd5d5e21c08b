package checkpoint

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arminwolf/ctm-estimator/internal/aggregate"
	"github.com/arminwolf/ctm-estimator/internal/tm"
)

func sampleAggregator() *aggregate.Aggregator {
	a := aggregate.New(4)
	a.Counts["1111"] = 9
	a.Counts["0"] = 3
	a.NonHalting[tm.ReasonTimeout] = 2
	a.TotalHalting = 12
	a.TotalProcessed = 14
	return a
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	state := FromAggregator(sampleAggregator(), 4, 5000, tm.Reduced, tm.Zero, 1000, 42)

	require.NoError(t, Save(path, state))
	assert.True(t, Exists(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, state, loaded)
}

func TestToAggregator_RebuildsTotals(t *testing.T) {
	state := FromAggregator(sampleAggregator(), 4, 5000, tm.Raw, tm.Zero, 1000, 7)
	rebuilt := state.ToAggregator()

	assert.Equal(t, uint64(12), rebuilt.TotalHalting)
	assert.Equal(t, uint64(14), rebuilt.TotalProcessed)
	assert.Equal(t, uint64(9), rebuilt.Counts["1111"])
}

func TestLoad_RejectsSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	state := FromAggregator(sampleAggregator(), 4, 5000, tm.Raw, tm.Zero, 1000, 0)
	require.NoError(t, Save(path, state))

	// Simulate a future schema bump by overwriting with a newer version.
	bumped := state
	bumped.SchemaVersion = schemaVersion + 1
	require.NoError(t, Save(path, bumped))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFileIsTerminalError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	assert.Error(t, err)
}

func TestExists_FalseForMissingPath(t *testing.T) {
	assert.False(t, Exists(filepath.Join(t.TempDir(), "nope.json")))
}

func TestValidate_RejectsParameterMismatch(t *testing.T) {
	state := FromAggregator(sampleAggregator(), 4, 5000, tm.Raw, tm.Zero, 1000, 0)

	assert.NoError(t, Validate(state, 4, tm.Raw, tm.Zero))
	assert.Error(t, Validate(state, 5, tm.Raw, tm.Zero))
	assert.Error(t, Validate(state, 4, tm.Reduced, tm.Zero))
	assert.Error(t, Validate(state, 4, tm.Raw, tm.One))
}
