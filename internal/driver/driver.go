// Package driver implements the parallel work distributor (C7): it
// partitions an enumeration into batches, dispatches them to workers,
// merges local aggregators into the global one as a contiguous prefix, and
// checkpoints periodically. The worker pool itself follows the teacher
// pack's fetcher.Run/worker errgroup pattern; batch partitioning and
// watermark bookkeeping follow the coordinator's tick-driven job creation.
package driver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelTrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/arminwolf/ctm-estimator/internal/aggregate"
	"github.com/arminwolf/ctm-estimator/internal/checkpoint"
	"github.com/arminwolf/ctm-estimator/internal/classify"
	"github.com/arminwolf/ctm-estimator/internal/metrics"
	"github.com/arminwolf/ctm-estimator/internal/queue"
	"github.com/arminwolf/ctm-estimator/internal/tm"
	"github.com/arminwolf/ctm-estimator/internal/tracing"
)

// Config bundles the run parameters and tunables the driver needs (spec
// §4.7 and §6).
type Config struct {
	NStates            int
	MaxRuntimeSteps    uint64
	BlankSymbol        tm.Symbol
	Mode               tm.Mode
	BatchSize          uint64
	NumMachinesToRun   *uint64
	CheckpointInterval uint64 // in completed batches; 0 disables
	CheckpointFile     string
	WorkerCount        int
	EnableEscapee      bool
	EnablePeriod2      bool
}

// Driver owns the global aggregator and drives one run to completion or
// cancellation.
type Driver struct {
	cfg   Config
	enum  *tm.Enumerator
	queue *queue.InProc
	log   *slog.Logger

	mu           sync.Mutex
	aggregator   *aggregate.Aggregator
	watermark    uint64 // count of contiguous completed batches, in batch-index units
	totalBatches uint64
	pending      map[uint64]struct{} // batch indices dispatched, not yet merged
	outOfOrder   map[uint64]bool     // batch index -> done, buffered until contiguous
	results      chan batchResult
}

// New builds a Driver for one run. The internal dispatch queue and result
// channel are buffered at twice WorkerCount, which keeps workers fed without
// unbounded memory growth.
func New(cfg Config, logger *slog.Logger) (*Driver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 1000
	}

	enum, err := tm.New(cfg.NStates, cfg.Mode)
	if err != nil {
		return nil, classify.Terminal(fmt.Errorf("driver: build enumerator: %w", err))
	}

	size := enum.Size()
	if cfg.NumMachinesToRun != nil && *cfg.NumMachinesToRun < size {
		size = *cfg.NumMachinesToRun
	}
	totalBatches := (size + cfg.BatchSize - 1) / cfg.BatchSize

	d := &Driver{
		cfg:          cfg,
		enum:         enum,
		queue:        queue.NewInProc(cfg.WorkerCount * 2),
		log:          logger.With("component", "driver", "n_states", cfg.NStates, "mode", cfg.Mode),
		aggregator:   aggregate.New(cfg.NStates),
		totalBatches: totalBatches,
		pending:      make(map[uint64]struct{}),
		outOfOrder:   make(map[uint64]bool),
		results:      make(chan batchResult, cfg.WorkerCount*2),
	}

	if checkpoint.Exists(cfg.CheckpointFile) {
		state, err := checkpoint.Load(cfg.CheckpointFile)
		if err != nil {
			return nil, err
		}
		if err := checkpoint.Validate(state, cfg.NStates, cfg.Mode, cfg.BlankSymbol); err != nil {
			return nil, err
		}
		d.aggregator = state.ToAggregator()
		d.watermark = state.Watermark
		d.log.Info("resumed from checkpoint", "watermark", d.watermark, "total_batches", d.totalBatches)
	}

	return d, nil
}

// EnumerationSize returns the (possibly truncated by NumMachinesToRun)
// number of machine codes this run addresses.
func (d *Driver) EnumerationSize() uint64 {
	size := d.enum.Size()
	if d.cfg.NumMachinesToRun != nil && *d.cfg.NumMachinesToRun < size {
		size = *d.cfg.NumMachinesToRun
	}
	return size
}

// batchRange returns the [start,end) enumerator index range for batch i.
func (d *Driver) batchRange(i uint64) queue.Batch {
	start := i * d.cfg.BatchSize
	end := start + d.cfg.BatchSize
	if size := d.EnumerationSize(); end > size {
		end = size
	}
	return queue.Batch{Start: start, End: end}
}

// Run drives the enumeration to completion, or until ctx is cancelled. On
// cancellation it stops dispatching, waits for in-flight batches, merges
// what arrived, and writes a final checkpoint before returning ctx.Err().
func (d *Driver) Run(ctx context.Context) error {
	d.log.Info("driver started", "total_batches", d.totalBatches, "workers", d.cfg.WorkerCount, "resume_watermark", d.watermark)

	g, gCtx := errgroup.WithContext(ctx)

	for w := 0; w < d.cfg.WorkerCount; w++ {
		workerID := w
		g.Go(func() error {
			return d.worker(gCtx, workerID)
		})
	}

	dispatchErrCh := make(chan error, 1)
	go func() {
		dispatchErrCh <- d.dispatchLoop(gCtx)
		d.queue.CloseBatches()
	}()

	collectErr := d.collectLoop(gCtx)

	workerErr := g.Wait()
	dispatchErr := <-dispatchErrCh

	if err := d.finalCheckpoint(); err != nil {
		d.log.Warn("final checkpoint failed", "error", err)
	}

	for _, err := range []error{collectErr, workerErr, dispatchErr} {
		if err != nil && err != context.Canceled {
			return err
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

func (d *Driver) dispatchLoop(ctx context.Context) error {
	for i := d.watermark; i < d.totalBatches; i++ {
		b := d.batchRange(i)
		if err := d.queue.Dispatch(ctx, b); err != nil {
			return err
		}
		d.mu.Lock()
		d.pending[i] = struct{}{}
		d.mu.Unlock()
		metrics.BatchesDispatched.WithLabelValues(fmt.Sprint(d.cfg.NStates), string(d.cfg.Mode)).Inc()
	}
	return nil
}

func (d *Driver) worker(ctx context.Context, workerID int) error {
	log := d.log.With("worker", workerID)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-d.queue.Batches():
			if !ok {
				return nil
			}
			start := time.Now()
			local, err := d.simulateBatch(ctx, b)
			if err != nil {
				metrics.WorkerErrors.WithLabelValues(string(classify.Classify(err).Class)).Inc()
				log.Error("batch simulation failed", "batch_start", b.Start, "batch_end", b.End, "error", err)
				return err
			}
			metrics.BatchDuration.WithLabelValues(fmt.Sprint(d.cfg.NStates)).Observe(time.Since(start).Seconds())

			result := batchResult{index: b.Start / d.cfg.BatchSize, batch: b, local: local}
			select {
			case d.results <- result:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// batchResult carries a worker's finished local aggregator back to the
// collector loop in-process; the queue.Result JSON shape exists for the
// process-parallel Redis path and is not needed for this in-memory hop.
type batchResult struct {
	index uint64
	batch queue.Batch
	local *aggregate.Aggregator
}

func (d *Driver) simulateBatch(ctx context.Context, b queue.Batch) (*aggregate.Aggregator, error) {
	spanCtx, span := tracing.Tracer("driver").Start(ctx, "driver.simulateBatch",
		otelTrace.WithAttributes(
			attribute.Int("n_states", d.cfg.NStates),
			attribute.Int64("batch.start", int64(b.Start)),
			attribute.Int64("batch.end", int64(b.End)),
			attribute.Int64("batch.size", int64(b.End-b.Start)),
		),
	)
	defer span.End()
	_ = spanCtx

	local, err := SimulateBatch(ctx, d.simParams(), d.enum, b)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return local, nil
}

func (d *Driver) simParams() SimParams {
	return SimParams{
		NStates:         d.cfg.NStates,
		MaxRuntimeSteps: d.cfg.MaxRuntimeSteps,
		BlankSymbol:     d.cfg.BlankSymbol,
		Mode:            d.cfg.Mode,
		EnableEscapee:   d.cfg.EnableEscapee,
		EnablePeriod2:   d.cfg.EnablePeriod2,
	}
}

func (d *Driver) collectLoop(ctx context.Context) error {
	for {
		if d.watermarkAtOrPast(d.totalBatches) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-d.results:
			d.mu.Lock()
			delete(d.pending, r.index)
			d.outOfOrder[r.index] = true
			d.aggregator.Merge(r.local)
			d.advanceWatermarkLocked()
			watermark := d.watermark
			d.mu.Unlock()

			metrics.BatchesMerged.WithLabelValues(fmt.Sprint(d.cfg.NStates), string(d.cfg.Mode)).Inc()
			metrics.CheckpointWatermark.WithLabelValues(fmt.Sprint(d.cfg.NStates)).Set(float64(watermark))

			if d.cfg.CheckpointInterval > 0 && watermark%d.cfg.CheckpointInterval == 0 {
				if err := d.checkpointNow(watermark); err != nil {
					d.log.Warn("periodic checkpoint failed", "error", err)
				}
			}
			if watermark >= d.totalBatches {
				return nil
			}
		}
	}
}

// RunDistributed drives the enumeration exactly as Run does, but dispatches
// batches through a Redis-backed queue instead of spawning local worker
// goroutines. Separate ctmrun -mode=worker processes (RunRemoteWorker) pull
// from the same queue and publish results back to it. Use this when
// WorkerCount workers won't fit in one process, or workers need to run on
// separate machines.
func (d *Driver) RunDistributed(ctx context.Context, rq *queue.Redis) error {
	d.log.Info("distributed driver started", "total_batches", d.totalBatches, "resume_watermark", d.watermark)

	dispatchErrCh := make(chan error, 1)
	go func() {
		dispatchErrCh <- d.dispatchLoopRedis(ctx, rq)
	}()

	collectErr := d.collectLoopRedis(ctx, rq)
	dispatchErr := <-dispatchErrCh

	if err := d.finalCheckpoint(); err != nil {
		d.log.Warn("final checkpoint failed", "error", err)
	}

	for _, err := range []error{collectErr, dispatchErr} {
		if err != nil && err != context.Canceled {
			return err
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

func (d *Driver) dispatchLoopRedis(ctx context.Context, rq *queue.Redis) error {
	for i := d.watermark; i < d.totalBatches; i++ {
		b := d.batchRange(i)
		if err := rq.Dispatch(ctx, b); err != nil {
			return err
		}
		d.mu.Lock()
		d.pending[i] = struct{}{}
		d.mu.Unlock()
		metrics.BatchesDispatched.WithLabelValues(fmt.Sprint(d.cfg.NStates), string(d.cfg.Mode)).Inc()
	}
	return nil
}

func (d *Driver) collectLoopRedis(ctx context.Context, rq *queue.Redis) error {
	for {
		if d.watermarkAtOrPast(d.totalBatches) {
			return nil
		}
		res, err := rq.Results(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		local, err := decodeLocalAggregator(d.cfg.NStates, res.Aggregator)
		if err != nil {
			return classify.Terminal(err)
		}

		index := res.Batch.Start / d.cfg.BatchSize
		d.mu.Lock()
		delete(d.pending, index)
		d.outOfOrder[index] = true
		d.aggregator.Merge(local)
		d.advanceWatermarkLocked()
		watermark := d.watermark
		d.mu.Unlock()

		metrics.BatchesMerged.WithLabelValues(fmt.Sprint(d.cfg.NStates), string(d.cfg.Mode)).Inc()
		metrics.CheckpointWatermark.WithLabelValues(fmt.Sprint(d.cfg.NStates)).Set(float64(watermark))

		if d.cfg.CheckpointInterval > 0 && watermark%d.cfg.CheckpointInterval == 0 {
			if err := d.checkpointNow(watermark); err != nil {
				d.log.Warn("periodic checkpoint failed", "error", err)
			}
		}
		if watermark >= d.totalBatches {
			return nil
		}
	}
}

// advanceWatermarkLocked must be called with d.mu held. It walks
// outOfOrder starting at the current watermark, advancing past every
// contiguous completed batch index.
func (d *Driver) advanceWatermarkLocked() {
	for d.outOfOrder[d.watermark] {
		delete(d.outOfOrder, d.watermark)
		d.watermark++
	}
}

func (d *Driver) watermarkAtOrPast(n uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.watermark >= n
}

func (d *Driver) checkpointNow(watermark uint64) error {
	d.mu.Lock()
	state := checkpoint.FromAggregator(d.aggregator, d.cfg.NStates, d.cfg.MaxRuntimeSteps, d.cfg.Mode, d.cfg.BlankSymbol, d.cfg.BatchSize, watermark)
	d.mu.Unlock()

	// Transient write failures (e.g. a momentarily full disk) are retried a
	// few times with a short backoff; terminal ones are returned at once.
	const attempts = 3
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = checkpoint.Save(d.cfg.CheckpointFile, state)
		if err == nil || attempt == attempts || !classify.Classify(err).IsTransient() {
			break
		}
		d.log.Warn("checkpoint write failed, retrying", "attempt", attempt, "error", err)
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	if err != nil {
		metrics.CheckpointSaves.WithLabelValues("error").Inc()
		return err
	}
	metrics.CheckpointSaves.WithLabelValues("ok").Inc()
	return nil
}

func (d *Driver) finalCheckpoint() error {
	d.mu.Lock()
	watermark := d.watermark
	d.mu.Unlock()
	return d.checkpointNow(watermark)
}

// FinalizeCompletion applies the reduced-enumeration completion rules
// (spec §4.6) if this run used reduced enumeration and has not already
// applied them. It is a no-op for raw enumeration.
func (d *Driver) FinalizeCompletion() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cfg.Mode != tm.Reduced {
		return nil
	}
	if d.aggregator.CompletionApplied {
		return nil
	}
	return d.aggregator.ApplyCompletion(d.enum.SubspaceSize())
}

// Aggregator returns the driver's current global aggregator. Safe to call
// after Run returns; callers must not mutate the returned value.
func (d *Driver) Aggregator() *aggregate.Aggregator {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.aggregator
}

// Progress reports the driver's current position, for the admin server.
type Progress struct {
	NStates      int     `json:"n_states"`
	Watermark    uint64  `json:"watermark"`
	TotalBatches uint64  `json:"total_batches"`
	Fraction     float64 `json:"fraction"`
}

func (d *Driver) Progress() Progress {
	d.mu.Lock()
	defer d.mu.Unlock()
	var frac float64
	if d.totalBatches > 0 {
		frac = float64(d.watermark) / float64(d.totalBatches)
	}
	return Progress{
		NStates:      d.cfg.NStates,
		Watermark:    d.watermark,
		TotalBatches: d.totalBatches,
		Fraction:     frac,
	}
}
