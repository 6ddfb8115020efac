package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis keys. Pending intents are pushed on the left and claimed from the
// right; a claimed intent sits in its consumer's processing list until it is
// acked.
const (
	PendingKey       = "QUEUE_MANAGER_NOTIFY"
	DeadKey          = "QUEUE_MANAGER_NOTIFY:dead"
	processingPrefix = "QUEUE_MANAGER_NOTIFY:processing:"

	// DefaultConsumer is used until WithConsumer names the queue's consumer.
	DefaultConsumer = "default"
)

// ProcessingKey is the in-flight list of one consumer.
func ProcessingKey(consumer string) string {
	return processingPrefix + consumer
}

// ErrEmpty is returned by Claim when nothing arrived before the timeout.
var ErrEmpty = errors.New("notify queue empty")

// Claimed is an intent taken off the pending list. Raw is the exact payload
// stored in Redis and is needed to remove it again.
type Claimed struct {
	Intent Intent
	Raw    string
}

// RedisQueue is both the Dispatcher used by the listing service and the
// source the worker consumes.
type RedisQueue struct {
	rdb        *redis.Client
	consumer   string
	processing string
}

// NewRedisQueue wraps an existing client.
func NewRedisQueue(rdb *redis.Client) *RedisQueue {
	return (&RedisQueue{rdb: rdb}).WithConsumer(DefaultConsumer)
}

// WithConsumer names the consumer whose processing list Claim fills and
// Recover drains. Workers running side by side need distinct names that
// survive a restart.
func (q *RedisQueue) WithConsumer(name string) *RedisQueue {
	q.consumer = name
	q.processing = ProcessingKey(name)
	return q
}

// Consumer returns the name set by WithConsumer.
func (q *RedisQueue) Consumer() string { return q.consumer }

func (q *RedisQueue) NotifyCatalogGap(ctx context.Context, brandName string, modelName *string, requester string) error {
	return q.Enqueue(ctx, CatalogGap(brandName, modelName, requester))
}

func (q *RedisQueue) NotifyProfanity(ctx context.Context, description, requester string, managerID uuid.UUID) error {
	return q.Enqueue(ctx, Profanity(description, requester, managerID))
}

// Enqueue pushes one intent onto the pending list.
func (q *RedisQueue) Enqueue(ctx context.Context, in Intent) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal intent: %w", err)
	}
	if err := q.rdb.LPush(ctx, PendingKey, payload).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", PendingKey, err)
	}
	return nil
}

// Claim atomically moves the oldest pending intent onto this consumer's
// processing list, waiting up to timeout. It returns ErrEmpty on timeout.
func (q *RedisQueue) Claim(ctx context.Context, timeout time.Duration) (*Claimed, error) {
	raw, err := q.rdb.BLMove(ctx, PendingKey, q.processing, "RIGHT", "LEFT", timeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("blmove: %w", err)
	}

	var in Intent
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		// A payload we cannot decode will never succeed; park it.
		_ = q.move(ctx, raw, DeadKey)
		return nil, fmt.Errorf("decode intent: %w", err)
	}
	return &Claimed{Intent: in, Raw: raw}, nil
}

// Ack drops a delivered intent from the processing list.
func (q *RedisQueue) Ack(ctx context.Context, c *Claimed) error {
	if err := q.rdb.LRem(ctx, q.processing, 1, c.Raw).Err(); err != nil {
		return fmt.Errorf("lrem: %w", err)
	}
	return nil
}

// Retry puts the intent back on the pending list with its attempt counter
// bumped.
func (q *RedisQueue) Retry(ctx context.Context, c *Claimed) error {
	next := c.Intent
	next.Attempt++
	payload, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal intent: %w", err)
	}
	_, err = q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, q.processing, 1, c.Raw)
		p.LPush(ctx, PendingKey, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("requeue: %w", err)
	}
	return nil
}

// DeadLetter parks an intent that exhausted its retries.
func (q *RedisQueue) DeadLetter(ctx context.Context, c *Claimed) error {
	return q.move(ctx, c.Raw, DeadKey)
}

// Recover moves intents left in this consumer's processing list by an earlier
// run back to the head of the pending list, oldest claim first. Other
// consumers' lists are untouched. It returns how many were moved.
func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	n := 0
	for {
		err := q.rdb.LMove(ctx, q.processing, PendingKey, "LEFT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("lmove: %w", err)
		}
		n++
	}
}

// Len reports the pending and dead-letter list lengths.
func (q *RedisQueue) Len(ctx context.Context) (pending, dead int64, err error) {
	if pending, err = q.rdb.LLen(ctx, PendingKey).Result(); err != nil {
		return 0, 0, err
	}
	if dead, err = q.rdb.LLen(ctx, DeadKey).Result(); err != nil {
		return 0, 0, err
	}
	return pending, dead, nil
}

// InFlight reports how many intents each consumer currently holds.
func (q *RedisQueue) InFlight(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64)
	iter := q.rdb.Scan(ctx, 0, processingPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		n, err := q.rdb.LLen(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("llen %s: %w", key, err)
		}
		if n > 0 {
			out[strings.TrimPrefix(key, processingPrefix)] = n
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return out, nil
}

func (q *RedisQueue) move(ctx context.Context, raw, to string) error {
	_, err := q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, q.processing, 1, raw)
		p.LPush(ctx, to, raw)
		return nil
	})
	if err != nil {
		return fmt.Errorf("move to %s: %w", to, err)
	}
	return nil
}
