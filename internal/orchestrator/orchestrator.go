// Package orchestrator owns the job lifecycle: submission, GPU assignment,
// status transitions and cancellation.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"visionstream/internal/domain"
	"visionstream/internal/domain/ports"
	"visionstream/internal/metrics"
)

// ErrQueueFull is returned by SubmitJob when the queue sits over the
// configured high watermark.
var ErrQueueFull = errors.New("job queue is full")

// ErrInvalidTransition is returned when a requested status change violates
// the forward-only lifecycle.
var ErrInvalidTransition = errors.New("invalid status transition")

type activeJob struct {
	job    domain.Job
	cancel context.CancelFunc
	done   chan struct{}
}

// Orchestrator is the single writer of job status. Workers and HTTP handlers
// go through it; nothing else mutates a job.
type Orchestrator struct {
	queue         ports.JobQueue
	gpus          ports.GPURegistry
	highWatermark int64
	cancelGrace   time.Duration
	logger        *slog.Logger
	now           func() time.Time

	mu     sync.Mutex
	active map[domain.JobID]*activeJob
}

func New(queue ports.JobQueue, gpus ports.GPURegistry, highWatermark int64, cancelGrace time.Duration, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cancelGrace <= 0 {
		cancelGrace = 30 * time.Second
	}
	return &Orchestrator{
		queue:         queue,
		gpus:          gpus,
		highWatermark: highWatermark,
		cancelGrace:   cancelGrace,
		logger:        logger,
		now:           time.Now,
		active:        make(map[domain.JobID]*activeJob),
	}
}

// SubmitJob validates and enqueues a new pending job. When metadata carries
// an "idempotency_key", a repeated submission returns the original job id
// with no new enqueue. Returns ErrQueueFull over the high watermark.
func (o *Orchestrator) SubmitJob(ctx context.Context, job domain.Job) (domain.JobID, error) {
	if job.ID == "" {
		job.ID = domain.JobID(uuid.NewString())
	}
	job.Status = domain.JobPending
	job.GPUID = nil
	if job.CreatedAt.IsZero() {
		job.CreatedAt = o.now()
	}
	if err := job.Validate(); err != nil {
		return "", err
	}

	if o.highWatermark > 0 {
		length, err := o.queue.Length(ctx)
		if err != nil {
			return "", fmt.Errorf("queue length: %w", err)
		}
		if length >= o.highWatermark {
			return "", ErrQueueFull
		}
	}

	if key, ok := job.Metadata["idempotency_key"].(string); ok && key != "" {
		existing, claimed, err := o.queue.ClaimIdempotencyKey(ctx, key, job.ID)
		if err != nil {
			return "", fmt.Errorf("idempotency claim: %w", err)
		}
		if !claimed {
			return existing, nil
		}
	}

	if err := o.queue.Enqueue(ctx, job); err != nil {
		return "", fmt.Errorf("enqueue: %w", err)
	}
	if err := o.recordStatus(ctx, job); err != nil {
		o.logger.Warn("status record write failed", "job_id", job.ID, "error", err)
	}
	metrics.JobsEnqueuedTotal.WithLabelValues(string(job.SourceType)).Inc()
	o.logger.Info("job submitted", "job_id", job.ID, "camera_id", job.CameraID, "priority", job.Priority)
	return job.ID, nil
}

// Assign moves a dequeued job to assigned on the given GPU and registers its
// cancel handle.
func (o *Orchestrator) Assign(ctx context.Context, job domain.Job, gpuID int, cancel context.CancelFunc) (domain.Job, error) {
	if !job.Status.CanTransition(domain.JobAssigned) {
		return domain.Job{}, fmt.Errorf("%w: %s -> assigned", ErrInvalidTransition, job.Status)
	}
	job.Status = domain.JobAssigned
	job.GPUID = &gpuID
	job.AssignedAt = o.now()

	o.mu.Lock()
	o.active[job.ID] = &activeJob{job: job, cancel: cancel, done: make(chan struct{})}
	metrics.ActiveJobs.Set(float64(len(o.active)))
	o.mu.Unlock()

	if err := o.recordStatus(ctx, job); err != nil {
		o.logger.Warn("status record write failed", "job_id", job.ID, "error", err)
	}
	return job, nil
}

// MarkProcessing flips an assigned job to processing.
func (o *Orchestrator) MarkProcessing(ctx context.Context, id domain.JobID) (domain.Job, error) {
	return o.transitionActive(ctx, id, domain.JobProcessing, "")
}

// Complete settles a job as completed and frees its GPU.
func (o *Orchestrator) Complete(ctx context.Context, id domain.JobID) error {
	if _, err := o.settle(ctx, id, domain.JobCompleted, ""); err != nil {
		return err
	}
	metrics.JobsCompletedTotal.Inc()
	return nil
}

// Fail settles a job as failed with the given reason and frees its GPU.
func (o *Orchestrator) Fail(ctx context.Context, id domain.JobID, reason string) error {
	if _, err := o.settle(ctx, id, domain.JobFailed, reason); err != nil {
		return err
	}
	metrics.JobsFailedTotal.Inc()
	return nil
}

// Cancel stops a job wherever it is. A still-queued job is removed and
// settled immediately. A running job gets its context cancelled and the
// configured grace to wind down; if it does not settle in time it is failed
// with a cancellation timeout.
func (o *Orchestrator) Cancel(ctx context.Context, id domain.JobID) error {
	o.mu.Lock()
	entry, running := o.active[id]
	o.mu.Unlock()

	if !running {
		if err := o.queue.Remove(ctx, id); err != nil {
			return err
		}
		rec, err := o.queue.GetStatus(ctx, id)
		if err != nil {
			rec = domain.JobStatusRecord{JobID: id}
		}
		rec.Status = domain.JobCancelled
		rec.GPUID = nil
		rec.UpdatedAt = o.now()
		if err := o.queue.UpdateStatus(ctx, rec); err != nil {
			o.logger.Warn("status record write failed", "job_id", id, "error", err)
		}
		metrics.JobsCancelledTotal.Inc()
		o.logger.Info("queued job cancelled", "job_id", id)
		return nil
	}

	entry.cancel()
	select {
	case <-entry.done:
		// The worker observed cancellation and the dispatcher settled the
		// job as cancelled.
		return nil
	case <-time.After(o.cancelGrace):
		if _, err := o.settle(ctx, id, domain.JobFailed, "cancellation timeout"); err != nil {
			// The worker won the race and settled first.
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return err
		}
		metrics.JobsFailedTotal.Inc()
		o.logger.Warn("job did not stop within grace", "job_id", id)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SettleCancelled marks a running job cancelled after its worker returned a
// context error.
func (o *Orchestrator) SettleCancelled(ctx context.Context, id domain.JobID) error {
	if _, err := o.settle(ctx, id, domain.JobCancelled, ""); err != nil {
		return err
	}
	metrics.JobsCancelledTotal.Inc()
	return nil
}

// Status reports a job's current state. Running jobs answer from memory,
// everything else from the durable status record.
func (o *Orchestrator) Status(ctx context.Context, id domain.JobID) (domain.JobStatusRecord, error) {
	o.mu.Lock()
	if entry, ok := o.active[id]; ok {
		job := entry.job
		o.mu.Unlock()
		return domain.JobStatusRecord{
			JobID:     job.ID,
			Status:    job.Status,
			GPUID:     job.GPUID,
			Error:     job.Error,
			Metadata:  job.Metadata,
			UpdatedAt: o.now(),
		}, nil
	}
	o.mu.Unlock()
	return o.queue.GetStatus(ctx, id)
}

// QueueStats is the live view served by the stats endpoint.
type QueueStats struct {
	QueueLength   int64            `json:"queueLength"`
	ActiveJobs    int              `json:"activeJobs"`
	GPUsAvailable int              `json:"gpusAvailable"`
	GPUs          []domain.GPUSlot `json:"gpus"`
}

func (o *Orchestrator) Stats(ctx context.Context) (QueueStats, error) {
	length, err := o.queue.Length(ctx)
	if err != nil {
		return QueueStats{}, fmt.Errorf("queue length: %w", err)
	}
	o.mu.Lock()
	activeCount := len(o.active)
	o.mu.Unlock()

	slots := o.gpus.Snapshot(ctx)
	available := 0
	for _, s := range slots {
		if s.Allocatable() {
			available++
		}
	}
	return QueueStats{
		QueueLength:   length,
		ActiveJobs:    activeCount,
		GPUsAvailable: available,
		GPUs:          slots,
	}, nil
}

func (o *Orchestrator) transitionActive(ctx context.Context, id domain.JobID, next domain.JobStatus, reason string) (domain.Job, error) {
	o.mu.Lock()
	entry, ok := o.active[id]
	if !ok {
		o.mu.Unlock()
		return domain.Job{}, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	if !entry.job.Status.CanTransition(next) {
		status := entry.job.Status
		o.mu.Unlock()
		return domain.Job{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, status, next)
	}
	entry.job.Status = next
	entry.job.Error = reason
	job := entry.job
	o.mu.Unlock()

	if err := o.recordStatus(ctx, job); err != nil {
		o.logger.Warn("status record write failed", "job_id", id, "error", err)
	}
	return job, nil
}

// settle moves a job to a terminal status, releases its GPU and drops it
// from the active set.
func (o *Orchestrator) settle(ctx context.Context, id domain.JobID, terminal domain.JobStatus, reason string) (domain.Job, error) {
	o.mu.Lock()
	entry, ok := o.active[id]
	if !ok {
		o.mu.Unlock()
		return domain.Job{}, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	if !entry.job.Status.CanTransition(terminal) {
		status := entry.job.Status
		o.mu.Unlock()
		return domain.Job{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, status, terminal)
	}
	gpuID := entry.job.GPUID
	entry.job.Status = terminal
	entry.job.Error = reason
	entry.job.GPUID = nil
	entry.job.CompletedAt = o.now()
	job := entry.job
	close(entry.done)
	delete(o.active, id)
	metrics.ActiveJobs.Set(float64(len(o.active)))
	o.mu.Unlock()

	if gpuID != nil {
		if err := o.gpus.Release(ctx, *gpuID); err != nil {
			o.logger.Error("gpu release failed", "job_id", id, "gpu_id", *gpuID, "error", err)
		}
	}
	if err := o.recordStatus(ctx, job); err != nil {
		o.logger.Warn("status record write failed", "job_id", id, "error", err)
	}
	o.logger.Info("job settled", "job_id", id, "status", terminal, "error", reason)
	return job, nil
}

func (o *Orchestrator) recordStatus(ctx context.Context, job domain.Job) error {
	return o.queue.UpdateStatus(ctx, domain.JobStatusRecord{
		JobID:     job.ID,
		Status:    job.Status,
		GPUID:     job.GPUID,
		Error:     job.Error,
		Metadata:  job.Metadata,
		UpdatedAt: o.now(),
	})
}
