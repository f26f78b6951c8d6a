package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"visionstream/internal/domain"
	"visionstream/internal/domain/ports"
)

// JobRunner executes an assigned job. The worker processor satisfies it.
type JobRunner interface {
	Process(ctx context.Context, job domain.Job) error
}

// Dispatcher pulls jobs off the queue and binds them to GPUs. One dispatcher
// loop serves any number of devices; each assigned job runs in its own
// goroutine.
type Dispatcher struct {
	orch           *Orchestrator
	queue          ports.JobQueue
	gpus           ports.GPURegistry
	runner         JobRunner
	dequeueTimeout time.Duration
	backoff        time.Duration
	logger         *slog.Logger

	wg sync.WaitGroup
}

func NewDispatcher(orch *Orchestrator, queue ports.JobQueue, gpus ports.GPURegistry, runner JobRunner, dequeueTimeout, backoff time.Duration, logger *slog.Logger) *Dispatcher {
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5 * time.Second
	}
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		orch:           orch,
		queue:          queue,
		gpus:           gpus,
		runner:         runner,
		dequeueTimeout: dequeueTimeout,
		backoff:        backoff,
		logger:         logger,
	}
}

// Run loops until ctx is cancelled, then waits for in-flight jobs to settle.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("dispatcher started")
	for {
		if ctx.Err() != nil {
			break
		}
		job, score, err := d.queue.Dequeue(ctx, d.dequeueTimeout)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			d.logger.Error("dequeue failed", "error", err)
			d.sleep(ctx, d.backoff)
			continue
		}

		gpuID, err := d.gpus.Allocate(ctx, job.ID)
		if errors.Is(err, domain.ErrNotFound) {
			// No device free: put the job back at its original position so
			// it keeps its place in line, then back off before polling
			// again.
			if err := d.queue.EnqueueAt(ctx, job, score); err != nil {
				d.logger.Error("requeue failed", "job_id", job.ID, "error", err)
			}
			d.sleep(ctx, d.backoff)
			continue
		}
		if err != nil {
			d.logger.Error("gpu allocation failed", "job_id", job.ID, "error", err)
			if err := d.queue.EnqueueAt(ctx, job, score); err != nil {
				d.logger.Error("requeue failed", "job_id", job.ID, "error", err)
			}
			d.sleep(ctx, d.backoff)
			continue
		}

		jobCtx, cancel := context.WithCancel(ctx)
		assigned, err := d.orch.Assign(ctx, job, gpuID, cancel)
		if err != nil {
			cancel()
			d.logger.Error("assignment failed", "job_id", job.ID, "error", err)
			if err := d.gpus.Release(ctx, gpuID); err != nil {
				d.logger.Error("gpu release failed", "gpu_id", gpuID, "error", err)
			}
			continue
		}
		d.logger.Info("job assigned", "job_id", job.ID, "gpu_id", gpuID)

		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			defer cancel()
			d.execute(jobCtx, assigned)
		}()
	}
	d.wg.Wait()
	d.logger.Info("dispatcher stopped")
}

// execute drives one job through processing to a terminal status. Settlement
// uses a background context so a shutdown still writes final status and
// frees the GPU.
func (d *Dispatcher) execute(ctx context.Context, job domain.Job) {
	settleCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := d.orch.MarkProcessing(ctx, job.ID); err != nil {
		d.logger.Error("processing transition failed", "job_id", job.ID, "error", err)
		if err := d.orch.Fail(settleCtx, job.ID, err.Error()); err != nil {
			d.logger.Error("settlement failed", "job_id", job.ID, "error", err)
		}
		return
	}

	err := d.runner.Process(ctx, job)
	switch {
	case err == nil:
		if err := d.orch.Complete(settleCtx, job.ID); err != nil {
			d.logger.Error("settlement failed", "job_id", job.ID, "error", err)
		}
	case errors.Is(err, context.Canceled):
		if err := d.orch.SettleCancelled(settleCtx, job.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			d.logger.Error("settlement failed", "job_id", job.ID, "error", err)
		}
	default:
		if err := d.orch.Fail(settleCtx, job.ID, err.Error()); err != nil && !errors.Is(err, domain.ErrNotFound) {
			d.logger.Error("settlement failed", "job_id", job.ID, "error", err)
		}
	}
}

func (d *Dispatcher) sleep(ctx context.Context, dur time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(dur):
	}
}
