// Package queue provides the driver's batch dispatch transport (spec §5):
// an in-process channel pair by default, or a Redis-backed queue when the
// driver is split across independent worker processes. Both satisfy the
// same BatchQueue interface so internal/driver is agnostic to which is
// wired in.
package queue

import "context"

// Batch is one contiguous range of enumerator indices to simulate.
type Batch struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"` // exclusive
}

// Result is what a worker reports back for one dispatched batch: the
// encoded local aggregator plus enough bookkeeping for the driver to merge
// it into the contiguous watermark.
type Result struct {
	Batch      Batch  `json:"batch"`
	Aggregator []byte `json:"aggregator"` // JSON-encoded counts and non_halting maps of the local aggregator
	WorkerID   string `json:"worker_id"`
}

// BatchQueue decouples batch dispatch from how workers are deployed: in the
// same process (goroutines over channels) or as independent processes
// (Redis lists). Dispatch blocks until the batch is accepted by the
// transport (not until a worker claims it); Results blocks until the next
// worker result is available or ctx is done.
type BatchQueue interface {
	Dispatch(ctx context.Context, b Batch) error
	Results(ctx context.Context) (Result, error)
	PublishResult(ctx context.Context, r Result) error
	// Close releases transport resources. Dispatch/Results/PublishResult
	// after Close return an error.
	Close() error
}
