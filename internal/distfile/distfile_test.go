package distfile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arminwolf/ctm-estimator/internal/aggregate"
	"github.com/arminwolf/ctm-estimator/internal/tm"
)

func sampleAggregator() *aggregate.Aggregator {
	a := aggregate.New(3)
	a.Counts["111"] = 6
	a.Counts["0"] = 2
	a.NonHalting[tm.ReasonEscapee] = 1
	a.TotalHalting = 8
	a.TotalProcessed = 9
	return a
}

func TestBuild_DistributionMode(t *testing.T) {
	f := Build(sampleAggregator(), 1000, tm.Zero, tm.Raw, false)
	assert.Nil(t, f.RawCounts)
	assert.InDelta(t, 0.75, f.Distribution["111"], 1e-12)
	assert.InDelta(t, 0.25, f.Distribution["0"], 1e-12)
}

func TestBuild_RawCountsMode(t *testing.T) {
	f := Build(sampleAggregator(), 1000, tm.Zero, tm.Raw, true)
	assert.Nil(t, f.Distribution)
	assert.Equal(t, uint64(6), f.RawCounts["111"])
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dist.json")
	f := Build(sampleAggregator(), 1000, tm.Zero, tm.Reduced, false)

	require.NoError(t, Save(path, f))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, f, loaded)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
