package queue

import (
	"context"
	"errors"

	"github.com/arminwolf/ctm-estimator/internal/metrics"
)

// ErrClosed is returned by any operation on a queue after Close.
var ErrClosed = errors.New("queue: closed")

// InProc is the default BatchQueue: two buffered channels shared by
// goroutine workers in the same process, mirroring the teacher pack's
// jobCh/rawBatchCh pair between coordinator and fetcher.
type InProc struct {
	batches chan Batch
	results chan Result
	closed  chan struct{}
}

// NewInProc builds an InProc queue with the given channel buffer size.
func NewInProc(buffer int) *InProc {
	if buffer < 1 {
		buffer = 1
	}
	return &InProc{
		batches: make(chan Batch, buffer),
		results: make(chan Result, buffer),
		closed:  make(chan struct{}),
	}
}

func (q *InProc) Dispatch(ctx context.Context, b Batch) error {
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}
	select {
	case q.batches <- b:
		metrics.QueueDepth.WithLabelValues("inproc").Set(float64(len(q.batches)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closed:
		return ErrClosed
	}
}

// Batches exposes the dispatch channel for workers to range over; InProc
// workers pull directly from it rather than through PublishResult/Results'
// symmetric Dispatch/Results pair, since they live in the same process and
// don't need serialization at the boundary.
func (q *InProc) Batches() <-chan Batch {
	return q.batches
}

func (q *InProc) Results(ctx context.Context) (Result, error) {
	select {
	case r, ok := <-q.results:
		if !ok {
			return Result{}, ErrClosed
		}
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-q.closed:
		return Result{}, ErrClosed
	}
}

func (q *InProc) PublishResult(ctx context.Context, r Result) error {
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}
	select {
	case q.results <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closed:
		return ErrClosed
	}
}

func (q *InProc) CloseBatches() {
	close(q.batches)
}

func (q *InProc) Close() error {
	select {
	case <-q.closed:
		return nil
	default:
		close(q.closed)
	}
	return nil
}
