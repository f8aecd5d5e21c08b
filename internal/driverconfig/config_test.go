package driverconfig

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arminwolf/ctm-estimator/internal/tm"
)

func clearCTMEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CTM_N_STATES", "CTM_MAX_RUNTIME_STEPS", "CTM_USE_REDUCED_ENUMERATION",
		"CTM_BLANK_SYMBOL", "CTM_CHECKPOINT_INTERVAL", "CTM_SAVE_RAW_COUNTS",
		"CTM_NUM_PROCESSES", "CTM_LOG_LEVEL", "CTM_BATCH_SIZE", "CTM_NUM_MACHINES_TO_RUN",
		"CTM_QUEUE_BACKEND", "CTM_REDIS_URL",
	} {
		os.Unsetenv(key)
	}
}

func TestLoad_RejectsMissingNStates(t *testing.T) {
	clearCTMEnv(t)
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_AppliesDefaultsOnceRequiredFieldsSet(t *testing.T) {
	clearCTMEnv(t)
	t.Setenv("CTM_N_STATES", "4")
	t.Setenv("CTM_MAX_RUNTIME_STEPS", "5000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.NStates)
	assert.Equal(t, uint64(5000), cfg.MaxRuntimeSteps)
	assert.Equal(t, tm.Zero, cfg.BlankSymbol)
	assert.Equal(t, uint64(1000), cfg.BatchSize)
	assert.Equal(t, QueueBackendInProc, cfg.QueueBackend)
}

func TestLoad_RejectsInvalidBlankSymbol(t *testing.T) {
	clearCTMEnv(t)
	t.Setenv("CTM_N_STATES", "4")
	t.Setenv("CTM_MAX_RUNTIME_STEPS", "5000")
	t.Setenv("CTM_BLANK_SYMBOL", "7")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate_RejectsRedisBackendWithoutURL(t *testing.T) {
	cfg := &Config{
		NStates:         4,
		MaxRuntimeSteps: 5000,
		BlankSymbol:     tm.Zero,
		QueueBackend:    QueueBackendRedis,
		RedisURL:        "",
	}
	assert.Error(t, cfg.validate())
}

func TestValidate_RejectsUnknownQueueBackend(t *testing.T) {
	cfg := &Config{
		NStates:         4,
		MaxRuntimeSteps: 5000,
		BlankSymbol:     tm.Zero,
		QueueBackend:    "kafka",
	}
	assert.Error(t, cfg.validate())
}

func TestEffectiveWorkerCount_ZeroMeansAllCPUs(t *testing.T) {
	cfg := &Config{NumProcesses: 0}
	assert.Greater(t, cfg.EffectiveWorkerCount(), 0)

	cfg.NumProcesses = 1
	assert.Equal(t, 1, cfg.EffectiveWorkerCount())
}
