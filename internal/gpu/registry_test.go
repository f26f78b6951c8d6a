package gpu

import (
	"context"
	"errors"
	"testing"
	"time"

	"visionstream/internal/domain"
)

func newTestRegistry(t *testing.T, slots []domain.GPUSlot) *Registry {
	t.Helper()
	r, err := NewRegistry(context.Background(), NewStaticProber(slots))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func TestAllocatePrefersMostFreeMemory(t *testing.T) {
	r := newTestRegistry(t, []domain.GPUSlot{
		{ID: 0, MemoryFreeGB: 4, Utilization: 10},
		{ID: 1, MemoryFreeGB: 12, Utilization: 10},
		{ID: 2, MemoryFreeGB: 8, Utilization: 10},
	})
	id, err := r.Allocate(context.Background(), "j1")
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if id != 1 {
		t.Fatalf("allocated gpu %d, want 1", id)
	}
}

func TestAllocateSkipsLowMemoryAndHighUtilization(t *testing.T) {
	r := newTestRegistry(t, []domain.GPUSlot{
		{ID: 0, MemoryFreeGB: 1.5, Utilization: 10}, // below the 2 GB floor
		{ID: 1, MemoryFreeGB: 16, Utilization: 95},  // over the 90% ceiling
	})
	_, err := r.Allocate(context.Background(), "j1")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAtMostOneJobPerGPU(t *testing.T) {
	r := newTestRegistry(t, []domain.GPUSlot{
		{ID: 0, MemoryFreeGB: 8, Utilization: 10},
	})
	ctx := context.Background()

	id, err := r.Allocate(ctx, "j1")
	if err != nil || id != 0 {
		t.Fatalf("first allocate = %d, %v", id, err)
	}
	if _, err := r.Allocate(ctx, "j2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second allocate err = %v, want ErrNotFound", err)
	}
	if err := r.Release(ctx, 0); err != nil {
		t.Fatalf("release: %v", err)
	}
	if id, err := r.Allocate(ctx, "j2"); err != nil || id != 0 {
		t.Fatalf("allocate after release = %d, %v", id, err)
	}
}

func TestReleaseUnknownGPU(t *testing.T) {
	r := newTestRegistry(t, nil)
	if err := r.Release(context.Background(), 3); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRefreshKeepsBusyFlags(t *testing.T) {
	prober := NewStaticProber([]domain.GPUSlot{
		{ID: 0, MemoryFreeGB: 8, Utilization: 10},
	})
	r, err := NewRegistry(context.Background(), prober)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := r.Allocate(ctx, "j1"); err != nil {
		t.Fatal(err)
	}
	if err := r.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	// Still busy: the probe reporting the device as present must not free it.
	if _, err := r.Allocate(ctx, "j2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("allocate after refresh err = %v, want ErrNotFound", err)
	}
}

func TestEmptyProbeMeansNoGPUs(t *testing.T) {
	r := newTestRegistry(t, nil)
	if _, err := r.Allocate(context.Background(), "j1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if n := r.AvailableCount(context.Background()); n != 0 {
		t.Fatalf("available = %d, want 0", n)
	}
}

func TestParseSMIOutput(t *testing.T) {
	out := "0, NVIDIA A10, 24576, 20480, 35, 61\n1, NVIDIA A10, 24576, 1024, 95, 78\n"
	slots, err := parseSMIOutput(out, time.Now())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("got %d slots, want 2", len(slots))
	}
	if slots[0].ID != 0 || slots[0].Name != "NVIDIA A10" {
		t.Fatalf("slot 0 = %+v", slots[0])
	}
	if slots[0].MemoryTotalGB != 24 || slots[0].MemoryFreeGB != 20 {
		t.Fatalf("slot 0 memory = %v/%v, want 20/24", slots[0].MemoryFreeGB, slots[0].MemoryTotalGB)
	}
	if !slots[0].Allocatable() {
		t.Fatal("slot 0 should be allocatable")
	}
	if slots[1].Allocatable() {
		t.Fatal("slot 1 at 95% utilization should not be allocatable")
	}
}

func TestParseSMIOutputMalformed(t *testing.T) {
	if _, err := parseSMIOutput("0, NVIDIA A10, 24576\n", time.Now()); err == nil {
		t.Fatal("expected error for short line")
	}
	if _, err := parseSMIOutput("x, NVIDIA A10, 24576, 20480, 35, 61\n", time.Now()); err == nil {
		t.Fatal("expected error for non-numeric index")
	}
}

func TestParseSMIOutputEmpty(t *testing.T) {
	slots, err := parseSMIOutput("", time.Now())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("got %d slots, want 0", len(slots))
	}
}
