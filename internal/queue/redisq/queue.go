// Package redisq implements the job queue on a Redis sorted set.
//
// Jobs are members of one sorted set scored by priority and enqueue time, so
// ZPOPMAX yields the highest-priority, oldest job. Popping is atomic: a job
// handed to one dispatcher is never seen by another.
package redisq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"visionstream/internal/domain"
)

const (
	queueKey     = "job_queue"
	statusPrefix = "job_status:"
	idemPrefix   = "job_idem:"

	statusTTL = 24 * time.Hour
)

// scoreBand separates priority levels. Unix millis stay below it until the
// year 33658, so priority always dominates the time component.
const scoreBand = 1 << 50

// Score folds priority and enqueue time into one ZPOPMAX-sortable value.
// Priority dominates; within a priority level the time component is inverted
// so that the oldest job carries the highest score and pops first.
func Score(priority int, enqueuedAt time.Time) float64 {
	return float64(priority)*scoreBand + float64(scoreBand-enqueuedAt.UnixMilli())
}

type Queue struct {
	rdb *redis.Client
	now func() time.Time
}

func New(rdb *redis.Client) *Queue {
	return &Queue{rdb: rdb, now: time.Now}
}

func (q *Queue) Enqueue(ctx context.Context, job domain.Job) error {
	return q.EnqueueAt(ctx, job, Score(job.Priority, q.now()))
}

func (q *Queue) EnqueueAt(ctx context.Context, job domain.Job, score float64) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.rdb.ZAdd(ctx, queueKey, redis.Z{Score: score, Member: string(payload)}).Err(); err != nil {
		return fmt.Errorf("zadd: %w", err)
	}
	return nil
}

func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (domain.Job, float64, error) {
	res, err := q.rdb.BZPopMax(ctx, timeout, queueKey).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Job{}, 0, domain.ErrNotFound
	}
	if err != nil {
		return domain.Job{}, 0, fmt.Errorf("bzpopmax: %w", err)
	}
	member, ok := res.Member.(string)
	if !ok {
		return domain.Job{}, 0, fmt.Errorf("unexpected member type %T", res.Member)
	}
	var job domain.Job
	if err := json.Unmarshal([]byte(member), &job); err != nil {
		return domain.Job{}, 0, fmt.Errorf("unmarshal job: %w", err)
	}
	return job, res.Score, nil
}

func (q *Queue) Remove(ctx context.Context, id domain.JobID) error {
	members, err := q.rdb.ZRange(ctx, queueKey, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("zrange: %w", err)
	}
	for _, member := range members {
		var job domain.Job
		if json.Unmarshal([]byte(member), &job) != nil {
			continue
		}
		if job.ID != id {
			continue
		}
		n, err := q.rdb.ZRem(ctx, queueKey, member).Result()
		if err != nil {
			return fmt.Errorf("zrem: %w", err)
		}
		if n == 0 {
			// Popped by a dispatcher between the scan and the remove.
			return domain.ErrNotFound
		}
		return nil
	}
	return domain.ErrNotFound
}

func (q *Queue) UpdateStatus(ctx context.Context, rec domain.JobStatusRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	if err := q.rdb.Set(ctx, statusPrefix+string(rec.JobID), payload, statusTTL).Err(); err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return nil
}

func (q *Queue) GetStatus(ctx context.Context, id domain.JobID) (domain.JobStatusRecord, error) {
	raw, err := q.rdb.Get(ctx, statusPrefix+string(id)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.JobStatusRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.JobStatusRecord{}, fmt.Errorf("get status: %w", err)
	}
	var rec domain.JobStatusRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return domain.JobStatusRecord{}, fmt.Errorf("unmarshal status: %w", err)
	}
	return rec, nil
}

func (q *Queue) Length(ctx context.Context) (int64, error) {
	n, err := q.rdb.ZCard(ctx, queueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard: %w", err)
	}
	return n, nil
}

func (q *Queue) ClaimIdempotencyKey(ctx context.Context, key string, id domain.JobID) (domain.JobID, bool, error) {
	ok, err := q.rdb.SetNX(ctx, idemPrefix+key, string(id), statusTTL).Result()
	if err != nil {
		return "", false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		return id, true, nil
	}
	existing, err := q.rdb.Get(ctx, idemPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SetNX and Get; claim again.
		return q.ClaimIdempotencyKey(ctx, key, id)
	}
	if err != nil {
		return "", false, fmt.Errorf("get idempotency key: %w", err)
	}
	return domain.JobID(existing), false, nil
}
