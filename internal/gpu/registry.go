package gpu

import (
	"context"
	"fmt"
	"sync"
	"time"

	"visionstream/internal/domain"
	"visionstream/internal/domain/ports"
)

// Registry is the single owner of GPU availability. A device marked busy
// stays busy until its job releases it, regardless of what the prober reports
// in between.
type Registry struct {
	mu     sync.Mutex
	prober ports.GPUProber
	slots  map[int]*domain.GPUSlot
}

func NewRegistry(ctx context.Context, prober ports.GPUProber) (*Registry, error) {
	r := &Registry{prober: prober, slots: make(map[int]*domain.GPUSlot)}
	if err := r.Refresh(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Allocate picks the allocatable device with the most free memory and marks
// it busy for the job. Returns domain.ErrNotFound when every device is busy,
// short on memory, or over the utilization ceiling.
func (r *Registry) Allocate(_ context.Context, jobID domain.JobID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var best *domain.GPUSlot
	for _, slot := range r.slots {
		if !slot.Allocatable() {
			continue
		}
		if best == nil || slot.MemoryFreeGB > best.MemoryFreeGB {
			best = slot
		}
	}
	if best == nil {
		return 0, domain.ErrNotFound
	}
	best.Available = false
	best.JobID = jobID
	return best.ID, nil
}

func (r *Registry) Release(_ context.Context, gpuID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.slots[gpuID]
	if !ok {
		return fmt.Errorf("release gpu %d: %w", gpuID, domain.ErrNotFound)
	}
	slot.Available = true
	slot.JobID = ""
	return nil
}

// Refresh re-probes load and memory. Busy flags and job bindings are owned by
// Allocate/Release and survive the refresh; devices that disappear from the
// probe while busy are kept so their jobs can still release them.
func (r *Registry) Refresh(ctx context.Context) error {
	probed, err := r.prober.Probe(ctx)
	if err != nil {
		return fmt.Errorf("probe gpus: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[int]bool, len(probed))
	for _, p := range probed {
		seen[p.ID] = true
		if existing, ok := r.slots[p.ID]; ok {
			existing.Name = p.Name
			existing.MemoryTotalGB = p.MemoryTotalGB
			existing.MemoryFreeGB = p.MemoryFreeGB
			existing.Utilization = p.Utilization
			existing.Temperature = p.Temperature
			existing.UpdatedAt = p.UpdatedAt
			continue
		}
		slot := p
		r.slots[p.ID] = &slot
	}
	for id, slot := range r.slots {
		if !seen[id] && slot.Available {
			delete(r.slots, id)
		}
	}
	return nil
}

func (r *Registry) Snapshot(_ context.Context) []domain.GPUSlot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.GPUSlot, 0, len(r.slots))
	for _, slot := range r.slots {
		out = append(out, *slot)
	}
	return out
}

// AvailableCount reports how many devices can take a job right now.
func (r *Registry) AvailableCount(_ context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, slot := range r.slots {
		if slot.Allocatable() {
			n++
		}
	}
	return n
}

var _ ports.GPURegistry = (*Registry)(nil)

// staticProber returns a fixed slot list; used by tests and CPU-only setups.
type staticProber struct {
	slots []domain.GPUSlot
}

func NewStaticProber(slots []domain.GPUSlot) ports.GPUProber {
	for i := range slots {
		slots[i].Available = true
		if slots[i].UpdatedAt.IsZero() {
			slots[i].UpdatedAt = time.Now()
		}
	}
	return &staticProber{slots: slots}
}

func (p *staticProber) Probe(context.Context) ([]domain.GPUSlot, error) {
	out := make([]domain.GPUSlot, len(p.slots))
	copy(out, p.slots)
	return out, nil
}
