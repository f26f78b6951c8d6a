package ports

import (
	"context"
	"time"

	"visionstream/internal/domain"
)

// JobQueue is the priority queue between the ingestion layer and the
// dispatcher. Implementations must dequeue atomically: a job handed to one
// consumer is never handed to another.
type JobQueue interface {
	// Enqueue adds the job with score priority*1e6 + enqueue-unix-millis.
	// Within a priority level older jobs drain first.
	Enqueue(ctx context.Context, job domain.Job) error

	// EnqueueAt adds the job with an explicit score. Used for requeueing a
	// job at its original position after a failed assignment.
	EnqueueAt(ctx context.Context, job domain.Job, score float64) error

	// Dequeue blocks up to timeout for the highest-score job. Returns the
	// job and its score, or domain.ErrNotFound when the timeout elapses on
	// an empty queue.
	Dequeue(ctx context.Context, timeout time.Duration) (domain.Job, float64, error)

	// Remove deletes a still-queued job. Returns domain.ErrNotFound if it
	// was already dequeued or never enqueued.
	Remove(ctx context.Context, id domain.JobID) error

	// UpdateStatus upserts the durable status record with a 24h TTL.
	UpdateStatus(ctx context.Context, rec domain.JobStatusRecord) error

	// GetStatus returns the durable status record, or domain.ErrNotFound
	// when the record expired or never existed.
	GetStatus(ctx context.Context, id domain.JobID) (domain.JobStatusRecord, error)

	// Length reports how many jobs are currently queued.
	Length(ctx context.Context) (int64, error)

	// ClaimIdempotencyKey records key -> jobID with a 24h TTL. When the key
	// is already claimed it returns the existing job id and false.
	ClaimIdempotencyKey(ctx context.Context, key string, id domain.JobID) (domain.JobID, bool, error)
}
