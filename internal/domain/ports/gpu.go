package ports

import (
	"context"

	"visionstream/internal/domain"
)

// GPUProber discovers the physical devices and their current load.
type GPUProber interface {
	Probe(ctx context.Context) ([]domain.GPUSlot, error)
}

// GPURegistry tracks device availability and enforces at most one job per
// device.
type GPURegistry interface {
	// Allocate reserves the best allocatable device for the job and returns
	// its id. Returns domain.ErrNotFound when no device qualifies.
	Allocate(ctx context.Context, jobID domain.JobID) (int, error)

	// Release frees the device so a new job can be assigned to it.
	Release(ctx context.Context, gpuID int) error

	// Refresh re-probes device load without touching busy flags.
	Refresh(ctx context.Context) error

	// Snapshot returns the current state of every device.
	Snapshot(ctx context.Context) []domain.GPUSlot
}
