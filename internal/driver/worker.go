package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/arminwolf/ctm-estimator/internal/aggregate"
	"github.com/arminwolf/ctm-estimator/internal/classify"
	"github.com/arminwolf/ctm-estimator/internal/metrics"
	"github.com/arminwolf/ctm-estimator/internal/queue"
	"github.com/arminwolf/ctm-estimator/internal/tm"
)

// SimParams is the subset of Config a worker needs to build its own
// enumerator and simulate batches, independent of whether it runs as a
// goroutine in the coordinator's process or as a separate ctmrun -mode
// worker process talking to Redis.
type SimParams struct {
	NStates         int
	MaxRuntimeSteps uint64
	BlankSymbol     tm.Symbol
	Mode            tm.Mode
	EnableEscapee   bool
	EnablePeriod2   bool
}

// localAggregatorPayload is the wire shape a worker reports back: just
// enough of aggregate.Aggregator to merge, independent of checkpoint's
// richer schema (which also carries run parameters the coordinator already
// knows).
type localAggregatorPayload struct {
	Counts     map[string]uint64           `json:"counts"`
	NonHalting map[tm.NonHaltReason]uint64 `json:"non_halting"`
}

func encodeLocalAggregator(a *aggregate.Aggregator) ([]byte, error) {
	return json.Marshal(localAggregatorPayload{Counts: a.Counts, NonHalting: a.NonHalting})
}

func decodeLocalAggregator(nStates int, data []byte) (*aggregate.Aggregator, error) {
	var payload localAggregatorPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("driver: decode worker result: %w", err)
	}
	a := aggregate.New(nStates)
	for s, c := range payload.Counts {
		a.Counts[s] = c
	}
	for r, c := range payload.NonHalting {
		a.NonHalting[r] = c
	}
	a.TotalHalting = sumCountsMap(payload.Counts)
	var nonHaltingTotal uint64
	for _, c := range payload.NonHalting {
		nonHaltingTotal += c
	}
	a.TotalProcessed = a.TotalHalting + nonHaltingTotal
	return a, nil
}

func sumCountsMap(m map[string]uint64) uint64 {
	var total uint64
	for _, v := range m {
		total += v
	}
	return total
}

// SimulateBatch decodes and simulates every machine code in [b.Start, b.End)
// against enum, returning a fresh local aggregator. It is the one place
// batch simulation logic lives; both the in-process worker pool and the
// standalone worker process (RunRemoteWorker) call it.
func SimulateBatch(ctx context.Context, p SimParams, enum *tm.Enumerator, b queue.Batch) (*aggregate.Aggregator, error) {
	local := aggregate.New(p.NStates)
	simCfg := tm.SimConfig{
		MaxSteps:      p.MaxRuntimeSteps,
		Blank:         p.BlankSymbol,
		EnableEscapee: p.EnableEscapee,
		EnablePeriod2: p.EnablePeriod2,
	}

	for idx := b.Start; idx < b.End; idx++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		code, err := enum.CodeAt(idx)
		if err != nil {
			return nil, classify.Terminal(fmt.Errorf("driver: enumerate index %d: %w", idx, err))
		}
		table, err := tm.Decode(code, p.NStates)
		if err != nil {
			return nil, classify.Terminal(fmt.Errorf("driver: decode code %d: %w", code, err))
		}
		if tm.HasNoHaltTransition(table) {
			local.Record(tm.Outcome{Status: tm.StatusNonHalting, Reason: tm.ReasonNoHaltTransition})
			continue
		}
		local.Record(tm.Simulate(table, simCfg))
	}
	nLabel := fmt.Sprint(p.NStates)
	metrics.MachinesHalted.WithLabelValues(nLabel).Add(float64(local.TotalHalting))
	for reason, c := range local.NonHalting {
		metrics.MachinesNonHalting.WithLabelValues(nLabel, string(reason)).Add(float64(c))
	}
	return local, nil
}

// RunRemoteWorker runs as an independent ctmrun -mode=worker process: it
// pulls batches from a Redis-backed queue, simulates them, and publishes
// results back, until ctx is cancelled. This is the process-parallel path
// spec §5 calls out as an alternative to the in-process goroutine pool.
func RunRemoteWorker(ctx context.Context, p SimParams, rq *queue.Redis, workerID string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	enum, err := tm.New(p.NStates, p.Mode)
	if err != nil {
		return classify.Terminal(fmt.Errorf("driver: build enumerator: %w", err))
	}

	logger.Info("remote worker started", "worker_id", workerID, "n_states", p.NStates, "mode", p.Mode)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b, err := rq.NextBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		local, err := SimulateBatch(ctx, p, enum, b)
		if err != nil {
			return err
		}

		payload, err := encodeLocalAggregator(local)
		if err != nil {
			return err
		}
		if err := rq.PublishResult(ctx, queue.Result{Batch: b, Aggregator: payload, WorkerID: workerID}); err != nil {
			return err
		}
		logger.Debug("remote worker published batch result", "worker_id", workerID, "batch_start", b.Start, "batch_end", b.End)
	}
}
