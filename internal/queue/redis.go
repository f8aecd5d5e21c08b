package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arminwolf/ctm-estimator/internal/circuitbreaker"
	"github.com/arminwolf/ctm-estimator/internal/metrics"
)

// Redis is a BatchQueue backed by two Redis lists, letting the driver run
// as one process and workers run as independent ctmrun -mode=worker
// processes (spec §5's process-parallel mode). It mirrors the
// connection-and-ping setup of the teacher pack's redis.Stream, generalized
// from a single stream client to the two named lists a batch/result pair
// needs.
//
// Dispatch and PublishResult go through a circuit breaker: once Redis calls
// keep failing, they return an error at once instead of hanging against a
// broker that just went down. The coordinator does not requeue a batch
// whose result is never published. NextBatch and Results block on BRPop with no
// timeout by design, so they are not breaker-guarded — there is nothing
// useful to fail fast out of a call that is meant to wait indefinitely.
type Redis struct {
	client    *redis.Client
	batchKey  string
	resultKey string
	breaker   *circuitbreaker.Breaker
}

// NewRedis dials url and verifies connectivity before returning, matching
// the teacher pack's fail-fast-on-construct style.
func NewRedis(url, namespace string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("queue: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("queue: ping redis: %w", err)
	}
	if namespace == "" {
		namespace = "ctm"
	}
	return &Redis{
		client:    client,
		batchKey:  namespace + ":batches",
		resultKey: namespace + ":results",
		breaker:   circuitbreaker.New(circuitbreaker.Config{FailureThreshold: 5, OpenTimeout: 10 * time.Second}),
	}, nil
}

func (q *Redis) Dispatch(ctx context.Context, b Batch) error {
	if err := q.breaker.Allow(); err != nil {
		return fmt.Errorf("queue: %w", err)
	}
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("queue: marshal batch: %w", err)
	}
	depth, err := q.client.LPush(ctx, q.batchKey, data).Result()
	if err != nil {
		q.breaker.RecordFailure()
		return err
	}
	q.breaker.RecordSuccess()
	metrics.QueueDepth.WithLabelValues("redis").Set(float64(depth))
	return nil
}

// NextBatch blocks (up to ctx) for the next batch a worker process should
// simulate. Only worker processes call this; the in-process driver instead
// reads InProc.Batches() directly.
func (q *Redis) NextBatch(ctx context.Context) (Batch, error) {
	res, err := q.client.BRPop(ctx, 0, q.batchKey).Result()
	if err != nil {
		return Batch{}, fmt.Errorf("queue: brpop batch: %w", err)
	}
	if len(res) != 2 {
		return Batch{}, fmt.Errorf("queue: unexpected brpop reply shape")
	}
	var b Batch
	if err := json.Unmarshal([]byte(res[1]), &b); err != nil {
		return Batch{}, fmt.Errorf("queue: unmarshal batch: %w", err)
	}
	if n, err := q.client.LLen(ctx, q.batchKey).Result(); err == nil {
		metrics.QueueDepth.WithLabelValues("redis").Set(float64(n))
	}
	return b, nil
}

func (q *Redis) Results(ctx context.Context) (Result, error) {
	res, err := q.client.BRPop(ctx, 0, q.resultKey).Result()
	if err != nil {
		return Result{}, fmt.Errorf("queue: brpop result: %w", err)
	}
	if len(res) != 2 {
		return Result{}, fmt.Errorf("queue: unexpected brpop reply shape")
	}
	var r Result
	if err := json.Unmarshal([]byte(res[1]), &r); err != nil {
		return Result{}, fmt.Errorf("queue: unmarshal result: %w", err)
	}
	return r, nil
}

func (q *Redis) PublishResult(ctx context.Context, r Result) error {
	if err := q.breaker.Allow(); err != nil {
		return fmt.Errorf("queue: %w", err)
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("queue: marshal result: %w", err)
	}
	if err := q.client.LPush(ctx, q.resultKey, data).Err(); err != nil {
		q.breaker.RecordFailure()
		return err
	}
	q.breaker.RecordSuccess()
	return nil
}

func (q *Redis) Close() error {
	return q.client.Close()
}
