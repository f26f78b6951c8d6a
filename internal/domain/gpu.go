package domain

import "time"

// GPUSlot is the registry's view of one physical device. Available is flipped
// by the registry when a job is assigned or released; the utilization and
// memory fields are refreshed by the prober.
type GPUSlot struct {
	ID            int       `json:"id"`
	Name          string    `json:"name"`
	MemoryTotalGB float64   `json:"memoryTotalGb"`
	MemoryFreeGB  float64   `json:"memoryFreeGb"`
	Utilization   float64   `json:"utilization"` // percent, 0..100
	Temperature   float64   `json:"temperature"` // celsius
	Available     bool      `json:"available"`
	JobID         JobID     `json:"jobId,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// MinJobMemoryGB is the free-memory floor a device must clear to accept a job.
const MinJobMemoryGB = 2.0

// MaxUtilizationPct is the utilization ceiling above which a device is skipped
// during allocation even when marked available.
const MaxUtilizationPct = 90.0

// Allocatable reports whether the slot can take a new job right now.
func (g GPUSlot) Allocatable() bool {
	return g.Available && g.MemoryFreeGB >= MinJobMemoryGB && g.Utilization <= MaxUtilizationPct
}
