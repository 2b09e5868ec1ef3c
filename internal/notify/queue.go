package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Queue is a FIFO of letter jobs on a Redis list: LPUSH in, BLMOVE out onto
// a processing list that holds each job until the worker settles it.
type Queue struct {
	rdb        redis.Cmdable
	key        string
	processing string
	dead       string
	poison     string
	log        *slog.Logger
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithQueueLogger replaces the default slog logger.
func WithQueueLogger(l *slog.Logger) QueueOption { return func(q *Queue) { q.log = l } }

// NewQueue returns the queue stored under the default keys.
func NewQueue(rdb redis.Cmdable, opts ...QueueOption) *Queue {
	q := &Queue{
		rdb:        rdb,
		key:        QueueKey,
		processing: ProcessingKey,
		dead:       DeadLetterKey,
		poison:     PoisonKey,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Push appends job to the queue.
func (q *Queue) Push(ctx context.Context, job Job) error {
	b, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.key, b).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", q.key, err)
	}
	return nil
}

// Pop waits up to timeout for the oldest job and moves it to the processing
// list. It returns (nil, nil) when the wait times out. The job stays on the
// processing list until Ack, Retry or Bury.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (*Job, error) {
	raw, err := q.rdb.BLMove(ctx, q.key, q.processing, "RIGHT", "LEFT", timeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("blmove %s: %w", q.key, err)
	}

	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		if perr := q.quarantine(ctx, q.processing, raw, err); perr != nil {
			return nil, perr
		}
		return nil, fmt.Errorf("decode job: %w", err)
	}
	job.raw = raw
	return &job, nil
}

// Ack removes a delivered job from the processing list.
func (q *Queue) Ack(ctx context.Context, job Job) error {
	if job.raw == "" {
		return nil
	}
	if err := q.rdb.LRem(ctx, q.processing, 1, job.raw).Err(); err != nil {
		return fmt.Errorf("lrem %s: %w", q.processing, err)
	}
	return nil
}

// Retry puts job back on the queue and drops the popped copy in one
// transaction.
func (q *Queue) Retry(ctx context.Context, job Job) error {
	return q.settle(ctx, q.key, job)
}

// Bury moves job to the dead-letter list.
func (q *Queue) Bury(ctx context.Context, job Job) error {
	return q.settle(ctx, q.dead, job)
}

// Recover moves every job left on the processing list back onto the queue
// and returns how many moved. Jobs get there when a worker stops between
// Pop and settling the job. Delivery is at-least-once: a letter recovered
// while another worker is still sending it goes out twice.
func (q *Queue) Recover(ctx context.Context) (int, error) {
	moved := 0
	for {
		err := q.rdb.LMove(ctx, q.processing, q.key, "LEFT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("lmove %s: %w", q.processing, err)
		}
		moved++
	}
}

// Len reports the number of waiting, in-flight and dead jobs.
func (q *Queue) Len(ctx context.Context) (waiting, inFlight, dead int64, err error) {
	pipe := q.rdb.Pipeline()
	w := pipe.LLen(ctx, q.key)
	p := pipe.LLen(ctx, q.processing)
	d := pipe.LLen(ctx, q.dead)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, 0, fmt.Errorf("queue length: %w", err)
	}
	return w.Val(), p.Val(), d.Val(), nil
}

// Redrive moves every dead job back onto the queue with its attempt count
// reset, and returns how many moved. Entries that no longer decode go to
// the poison list instead.
func (q *Queue) Redrive(ctx context.Context) (int, error) {
	moved := 0
	for {
		raw, err := q.rdb.RPop(ctx, q.dead).Result()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("rpop %s: %w", q.dead, err)
		}

		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			if perr := q.rdb.LPush(ctx, q.poison, raw).Err(); perr != nil {
				_ = q.rdb.RPush(ctx, q.dead, raw).Err()
				return moved, fmt.Errorf("lpush %s: %w", q.poison, perr)
			}
			q.log.Warn("undecodable dead letter moved to poison list",
				"key", q.poison, "bytes", len(raw), "err", err)
			continue
		}
		job.Attempts = 0
		job.LastError = ""
		if err := q.Push(ctx, job); err != nil {
			// Put it back so nothing is lost.
			_ = q.rdb.RPush(ctx, q.dead, raw).Err()
			return moved, err
		}
		moved++
	}
}

// settle writes job to key and removes its popped copy from the processing
// list atomically. Jobs that were never popped are only written.
func (q *Queue) settle(ctx context.Context, key string, job Job) error {
	raw := job.raw
	b, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, b)
		if raw != "" {
			pipe.LRem(ctx, q.processing, 1, raw)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("lpush %s: %w", key, err)
	}
	return nil
}

// quarantine moves an undecodable payload from src to the poison list.
func (q *Queue) quarantine(ctx context.Context, src, raw string, cause error) error {
	_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, q.poison, raw)
		pipe.LRem(ctx, src, 1, raw)
		return nil
	})
	if err != nil {
		return fmt.Errorf("quarantine job: %w", err)
	}
	q.log.Warn("undecodable letter job moved to poison list",
		"key", q.poison, "bytes", len(raw), "err", cause)
	return nil
}
