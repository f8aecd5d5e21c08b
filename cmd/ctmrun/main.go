// Package main runs one CTM estimation pass: it enumerates (n, 2)-state
// Turing machines, simulates each on a blank tape under the configured step
// budget, aggregates halting outputs into a frequency distribution, and
// writes that distribution to disk. Progress is checkpointed periodically
// so an interrupted run can resume.
//
// Usage:
//
//	go run ./cmd/ctmrun \
//	  -n-states 4 \
//	  -max-steps 2000 \
//	  -use-reduced-enum \
//	  -output-file dist.json \
//	  -checkpoint-interval 500 \
//	  -workers 8
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arminwolf/ctm-estimator/internal/admin"
	"github.com/arminwolf/ctm-estimator/internal/checkpoint"
	"github.com/arminwolf/ctm-estimator/internal/distfile"
	"github.com/arminwolf/ctm-estimator/internal/driver"
	"github.com/arminwolf/ctm-estimator/internal/driverconfig"
	"github.com/arminwolf/ctm-estimator/internal/logging"
	"github.com/arminwolf/ctm-estimator/internal/queue"
	runstore "github.com/arminwolf/ctm-estimator/internal/runstore/postgres"
	"github.com/arminwolf/ctm-estimator/internal/tm"
	"github.com/arminwolf/ctm-estimator/internal/tracing"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := driverconfig.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(2)
	}
	runMode, workerID := applyFlags(cfg)

	if err := run(cfg, runMode, workerID); err != nil {
		slog.Error("ctmrun exited with error", "error", err)
		os.Exit(1)
	}
}

// applyFlags layers CLI flags on top of environment-derived defaults,
// matching argparse's precedence in the Python reference implementation
// this driver succeeds. Every flag except -mode and -worker-id mirrors an
// env var in driverconfig. It
// returns the run mode and worker identity separately since those govern
// how run() drives the driver rather than a Config field.
func applyFlags(cfg *driverconfig.Config) (string, string) {
	nStates := flag.Int("n-states", cfg.NStates, "number of non-halt states n")
	maxSteps := flag.Uint64("max-steps", cfg.MaxRuntimeSteps, "per-machine step budget")
	useReduced := flag.Bool("use-reduced-enum", cfg.UseReducedEnumeration, "enumerate the symmetry-reduced subspace instead of the raw space")
	blankSymbol := flag.Int("blank-symbol", int(cfg.BlankSymbol), "blank tape symbol (0 or 1)")
	checkpointInterval := flag.Uint64("checkpoint-interval", cfg.CheckpointInterval, "checkpoint every N completed batches (0 disables)")
	checkpointFile := flag.String("checkpoint-file", cfg.CheckpointFile, "checkpoint file path")
	outputFile := flag.String("output-file", cfg.OutputFile, "distribution output file path")
	workers := flag.Int("workers", cfg.NumProcesses, "worker count (0 = all CPUs, 1 = sequential)")
	batchSize := flag.Uint64("batch-size", cfg.BatchSize, "machine codes per dispatched batch")
	limit := flag.Uint64("limit", 0, "truncate the enumeration to this many machines (0 = no limit)")
	saveRawCounts := flag.Bool("save-raw-counts", cfg.SaveRawCounts, "write raw halting counts instead of a normalized distribution")
	logLevel := flag.String("log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	runLogFile := flag.String("run-log-file", cfg.RunLogFile, "optional JSON run log file path")
	metricsAddr := flag.String("metrics-addr", cfg.MetricsAddr, "admin/metrics HTTP listen address")
	tracingEndpoint := flag.String("tracing-endpoint", cfg.TracingEndpoint, "OTLP/gRPC tracing collector endpoint (empty disables tracing)")
	queueBackend := flag.String("queue-backend", cfg.QueueBackend, `batch dispatch backend: "inproc" or "redis"`)
	redisURL := flag.String("redis-url", cfg.RedisURL, "redis URL when queue-backend=redis")
	runHistoryDSN := flag.String("run-history-dsn", cfg.RunHistoryDSN, "optional Postgres DSN to record a run_history row")
	runMode := flag.String("mode", "standalone", `run mode: "standalone" (single process), "coordinator" (dispatch only, requires -queue-backend=redis), or "worker" (pull from redis, requires -queue-backend=redis)`)
	workerID := flag.String("worker-id", "", "worker identity reported with published results (worker mode only, defaults to hostname-pid)")
	flag.Parse()

	cfg.NStates = *nStates
	cfg.MaxRuntimeSteps = *maxSteps
	cfg.UseReducedEnumeration = *useReduced
	cfg.BlankSymbol = tm.Symbol(*blankSymbol)
	cfg.CheckpointInterval = *checkpointInterval
	cfg.CheckpointFile = *checkpointFile
	cfg.OutputFile = *outputFile
	cfg.NumProcesses = *workers
	cfg.SaveRawCounts = *saveRawCounts
	cfg.LogLevel = *logLevel
	cfg.RunLogFile = *runLogFile
	cfg.MetricsAddr = *metricsAddr
	cfg.TracingEndpoint = *tracingEndpoint
	cfg.QueueBackend = *queueBackend
	cfg.RedisURL = *redisURL
	cfg.RunHistoryDSN = *runHistoryDSN
	if *limit > 0 {
		cfg.NumMachinesToRun = limit
	}
	cfg.BatchSize = *batchSize
	return *runMode, *workerID
}

func run(cfg *driverconfig.Config, runMode, workerID string) error {
	level := parseLevel(cfg.LogLevel)
	logger, closeLog, err := logging.New(logging.Options{RunLogFile: cfg.RunLogFile, Level: level})
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	shutdownTracing, err := tracing.Init(context.Background(), "ctm-estimator", cfg.TracingEndpoint, cfg.TracingInsecure)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer shutdownTracing(context.Background())

	enumMode := tm.Raw
	if cfg.UseReducedEnumeration {
		enumMode = tm.Reduced
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if runMode == "worker" {
		return runWorker(ctx, cfg, enumMode, workerID, logger)
	}

	d, err := driver.New(driver.Config{
		NStates:            cfg.NStates,
		MaxRuntimeSteps:    cfg.MaxRuntimeSteps,
		BlankSymbol:        cfg.BlankSymbol,
		Mode:               enumMode,
		BatchSize:          cfg.BatchSize,
		NumMachinesToRun:   cfg.NumMachinesToRun,
		CheckpointInterval: cfg.CheckpointInterval,
		CheckpointFile:     cfg.CheckpointFile,
		WorkerCount:        cfg.EffectiveWorkerCount(),
		EnableEscapee:      true,
		EnablePeriod2:      true,
	}, logger)
	if err != nil {
		return err
	}

	srv := admin.NewServer(cfg.MetricsAddr, d, logger)

	var repo *runstore.Repo
	if cfg.RunHistoryDSN != "" {
		db, err := runstore.New(runstore.Config{URL: cfg.RunHistoryDSN})
		if err != nil {
			return fmt.Errorf("connect run history store: %w", err)
		}
		defer db.Close()
		if err := db.EnsureSchema(); err != nil {
			return fmt.Errorf("ensure run history schema: %w", err)
		}
		repo = runstore.NewRepo(db)
		srv.SetRunLister(runHistoryLister{repo}, cfg.NStates)
	}

	g, gCtx := errgroup.WithContext(ctx)
	// The admin server is stopped as soon as the driver returns, so g.Wait
	// does not keep waiting on it after the run is over.
	srvCtx, stopSrv := context.WithCancel(gCtx)
	defer stopSrv()

	g.Go(func() error {
		return srv.Run(srvCtx)
	})

	started := time.Now()
	switch runMode {
	case "coordinator":
		if cfg.QueueBackend != driverconfig.QueueBackendRedis {
			return fmt.Errorf("mode=coordinator requires -queue-backend=redis")
		}
		rq, err := queue.NewRedis(cfg.RedisURL, "ctm")
		if err != nil {
			return fmt.Errorf("connect redis queue: %w", err)
		}
		defer rq.Close()
		g.Go(func() error {
			defer stopSrv()
			return d.RunDistributed(gCtx, rq)
		})
	default:
		g.Go(func() error {
			defer stopSrv()
			return d.Run(gCtx)
		})
	}

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}

	if err := d.FinalizeCompletion(); err != nil {
		return fmt.Errorf("finalize completion: %w", err)
	}

	finished := time.Now()
	agg := d.Aggregator()
	f := distfile.Build(agg, cfg.MaxRuntimeSteps, cfg.BlankSymbol, enumMode, cfg.SaveRawCounts)
	if err := distfile.Save(cfg.OutputFile, f); err != nil {
		return fmt.Errorf("save distribution: %w", err)
	}
	logger.Info("distribution written", "output_file", cfg.OutputFile, "halting_total", agg.TotalHalting, "distinct_outputs", len(agg.Counts))

	if repo != nil {
		if err := repo.RecordRun(context.Background(), agg, cfg.MaxRuntimeSteps, enumMode, cfg.BlankSymbol, started, finished); err != nil {
			logger.Warn("failed to record run history", "error", err)
		}
	}

	if err := checkpoint.Save(cfg.CheckpointFile, checkpoint.FromAggregator(agg, cfg.NStates, cfg.MaxRuntimeSteps, enumMode, cfg.BlankSymbol, cfg.BatchSize, d.Progress().Watermark)); err != nil {
		logger.Warn("final checkpoint write failed", "error", err)
	}

	return nil
}

// runWorker runs this process as a pure Redis-backed worker: no admin
// server, no distribution file, no checkpoint — it just pulls batches and
// publishes results until ctx is cancelled or a queue or simulation error
// occurs. It is not told when the coordinator's enumeration is exhausted;
// it keeps waiting for the next batch.
func runWorker(ctx context.Context, cfg *driverconfig.Config, enumMode tm.Mode, workerID string, logger *slog.Logger) error {
	if cfg.QueueBackend != driverconfig.QueueBackendRedis {
		return fmt.Errorf("mode=worker requires -queue-backend=redis")
	}
	if workerID == "" {
		host, _ := os.Hostname()
		workerID = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	rq, err := queue.NewRedis(cfg.RedisURL, "ctm")
	if err != nil {
		return fmt.Errorf("connect redis queue: %w", err)
	}
	defer rq.Close()

	err = driver.RunRemoteWorker(ctx, driver.SimParams{
		NStates:         cfg.NStates,
		MaxRuntimeSteps: cfg.MaxRuntimeSteps,
		BlankSymbol:     cfg.BlankSymbol,
		Mode:            enumMode,
		EnableEscapee:   true,
		EnablePeriod2:   true,
	}, rq, workerID, logger)
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// runHistoryLister adapts *runstore/postgres.Repo to admin.RunLister so the
// admin package never needs to import the lib/pq-backed store directly.
type runHistoryLister struct {
	repo *runstore.Repo
}

func (l runHistoryLister) ListRuns(ctx context.Context, nStates, limit int) ([]admin.RunSummary, error) {
	runs, err := l.repo.ListRuns(ctx, nStates, limit)
	if err != nil {
		return nil, err
	}
	out := make([]admin.RunSummary, len(runs))
	for i, r := range runs {
		out[i] = admin.RunSummary{
			NStates:           r.NStates,
			MaxRuntimeSteps:   r.MaxRuntimeSteps,
			Enumeration:       string(r.Enumeration),
			BlankSymbol:       int(r.BlankSymbol),
			HaltingTotal:      r.HaltingTotal,
			NonHaltingTotal:   r.NonHaltingTotal,
			DistinctOutputs:   r.DistinctOutputs,
			CompletionApplied: r.CompletionApplied,
			StartedAt:         r.StartedAt.UTC().Format(time.RFC3339),
			FinishedAt:        r.FinishedAt.UTC().Format(time.RFC3339),
		}
	}
	return out, nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
