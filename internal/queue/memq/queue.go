// Package memq is an in-process job queue with the same ordering semantics as
// the Redis implementation. It backs tests and single-node deployments that
// run without Redis.
package memq

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"visionstream/internal/domain"
)

type item struct {
	job   domain.Job
	score float64
	seq   int64
}

type itemHeap []item

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].score != h[j].score {
		return h[i].score > h[j].score
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) { *h = append(*h, x.(item)) }

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

const scoreBand = 1 << 50

type statusEntry struct {
	rec       domain.JobStatusRecord
	expiresAt time.Time
}

type idemEntry struct {
	id        domain.JobID
	expiresAt time.Time
}

type Queue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    itemHeap
	statuses map[domain.JobID]statusEntry
	idem     map[string]idemEntry
	seq      int64
	now      func() time.Time
}

func New() *Queue {
	q := &Queue{
		statuses: make(map[domain.JobID]statusEntry),
		idem:     make(map[string]idemEntry),
		now:      time.Now,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func score(priority int, enqueuedAt time.Time) float64 {
	return float64(priority)*scoreBand + float64(scoreBand-enqueuedAt.UnixMilli())
}

func (q *Queue) Enqueue(ctx context.Context, job domain.Job) error {
	return q.EnqueueAt(ctx, job, score(job.Priority, q.now()))
}

func (q *Queue) EnqueueAt(_ context.Context, job domain.Job, sc float64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	heap.Push(&q.items, item{job: job, score: sc, seq: q.seq})
	q.cond.Signal()
	return nil
}

func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (domain.Job, float64, error) {
	deadline := q.now().Add(timeout)

	// The cond has no timed wait, so a timer wakes all waiters at the
	// deadline and each re-checks its own clock.
	timer := time.AfterFunc(timeout, func() { q.cond.Broadcast() })
	defer timer.Stop()
	stop := context.AfterFunc(ctx, func() { q.cond.Broadcast() })
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for q.items.Len() == 0 {
		if ctx.Err() != nil {
			return domain.Job{}, 0, ctx.Err()
		}
		if !q.now().Before(deadline) {
			return domain.Job{}, 0, domain.ErrNotFound
		}
		q.cond.Wait()
	}
	it := heap.Pop(&q.items).(item)
	return it.job, it.score, nil
}

func (q *Queue) Remove(_ context.Context, id domain.JobID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.items {
		if q.items[i].job.ID == id {
			heap.Remove(&q.items, i)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (q *Queue) UpdateStatus(_ context.Context, rec domain.JobStatusRecord) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.statuses[rec.JobID] = statusEntry{rec: rec, expiresAt: q.now().Add(24 * time.Hour)}
	return nil
}

func (q *Queue) GetStatus(_ context.Context, id domain.JobID) (domain.JobStatusRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry, ok := q.statuses[id]
	if !ok || q.now().After(entry.expiresAt) {
		delete(q.statuses, id)
		return domain.JobStatusRecord{}, domain.ErrNotFound
	}
	return entry.rec, nil
}

func (q *Queue) Length(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(q.items.Len()), nil
}

func (q *Queue) ClaimIdempotencyKey(_ context.Context, key string, id domain.JobID) (domain.JobID, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if entry, ok := q.idem[key]; ok && q.now().Before(entry.expiresAt) {
		return entry.id, false, nil
	}
	q.idem[key] = idemEntry{id: id, expiresAt: q.now().Add(24 * time.Hour)}
	return id, true, nil
}
