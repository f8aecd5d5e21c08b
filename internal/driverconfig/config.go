// Package driverconfig loads the estimator driver's configuration from
// environment variables with flag-provided overrides, in the style of the
// teacher pack's internal/config: one struct per concern, a Load() that
// fills in defaults and validates, getEnv helpers for the primitive types.
package driverconfig

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/arminwolf/ctm-estimator/internal/tm"
)

// Config holds every field the spec's CTM run needs (§6) plus the ambient
// fields the driver's surrounding infrastructure needs to start up.
type Config struct {
	NStates               int
	MaxRuntimeSteps       uint64
	UseReducedEnumeration bool
	BlankSymbol           tm.Symbol
	CheckpointInterval    uint64
	NumMachinesToRun      *uint64
	SaveRawCounts         bool
	NumProcesses          int
	LogLevel              string
	BatchSize             uint64

	CheckpointFile   string
	OutputFile       string
	RunLogFile       string
	MetricsAddr      string
	TracingEndpoint  string
	TracingInsecure  bool
	QueueBackend     string
	RedisURL         string
	RunHistoryDSN    string
}

const (
	QueueBackendInProc = "inproc"
	QueueBackendRedis  = "redis"
)

// Load fills Config from environment variables, applying the defaults spec
// §6 names, then validates. Callers (cmd/ctmrun) layer flag values on top by
// mutating the returned Config's fields before use; Load itself never reads
// os.Args.
func Load() (*Config, error) {
	blank, err := getEnvSymbol("CTM_BLANK_SYMBOL", tm.Zero)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		NStates:               getEnvInt("CTM_N_STATES", 0),
		MaxRuntimeSteps:       getEnvUint64("CTM_MAX_RUNTIME_STEPS", 0),
		UseReducedEnumeration: getEnvBool("CTM_USE_REDUCED_ENUMERATION", false),
		BlankSymbol:           blank,
		CheckpointInterval:    getEnvUint64("CTM_CHECKPOINT_INTERVAL", 0),
		SaveRawCounts:         getEnvBool("CTM_SAVE_RAW_COUNTS", false),
		NumProcesses:          getEnvInt("CTM_NUM_PROCESSES", 0),
		LogLevel:              getEnv("CTM_LOG_LEVEL", "info"),
		BatchSize:             getEnvUint64("CTM_BATCH_SIZE", 1000),

		CheckpointFile:  getEnv("CTM_CHECKPOINT_FILE", "ctm-checkpoint.json"),
		OutputFile:      getEnv("CTM_OUTPUT_FILE", "ctm-distribution.json"),
		RunLogFile:      getEnv("CTM_RUN_LOG_FILE", ""),
		MetricsAddr:     getEnv("CTM_METRICS_ADDR", ":9400"),
		TracingEndpoint: getEnv("CTM_TRACING_ENDPOINT", ""),
		TracingInsecure: getEnvBool("CTM_TRACING_INSECURE", true),
		QueueBackend:    getEnv("CTM_QUEUE_BACKEND", QueueBackendInProc),
		RedisURL:        getEnv("CTM_REDIS_URL", "redis://localhost:6379"),
		RunHistoryDSN:   getEnv("CTM_RUN_HISTORY_DSN", ""),
	}

	if n := getEnvUint64("CTM_NUM_MACHINES_TO_RUN", 0); n > 0 {
		cfg.NumMachinesToRun = &n
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.NStates <= 0 {
		return fmt.Errorf("n_states must be a positive integer")
	}
	if c.MaxRuntimeSteps == 0 {
		return fmt.Errorf("max_runtime_steps must be a positive integer")
	}
	if c.BlankSymbol != tm.Zero && c.BlankSymbol != tm.One {
		return fmt.Errorf("blank_symbol must be 0 or 1")
	}
	if c.NumProcesses < 0 {
		return fmt.Errorf("num_processes must be non-negative")
	}
	if c.QueueBackend != QueueBackendInProc && c.QueueBackend != QueueBackendRedis {
		return fmt.Errorf("queue backend must be %q or %q, got %q", QueueBackendInProc, QueueBackendRedis, c.QueueBackend)
	}
	if c.QueueBackend == QueueBackendRedis && c.RedisURL == "" {
		return fmt.Errorf("redis url is required when queue backend is %q", QueueBackendRedis)
	}
	return nil
}

// EffectiveWorkerCount resolves num_processes=0 to the host's CPU count, and
// num_processes=1 to sequential execution, per spec §6.
func (c *Config) EffectiveWorkerCount() int {
	if c.NumProcesses == 0 {
		return runtime.NumCPU()
	}
	return c.NumProcesses
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvUint64(key string, fallback uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseUint(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSymbol(key string, fallback tm.Symbol) (tm.Symbol, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "0":
		return tm.Zero, nil
	case "1":
		return tm.One, nil
	default:
		return fallback, fmt.Errorf("%s must be 0 or 1, got %q", key, v)
	}
}
