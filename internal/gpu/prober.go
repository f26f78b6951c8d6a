// Package gpu tracks physical device state and enforces one job per device.
package gpu

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"visionstream/internal/domain"
)

const maxProbeTimeout = 10 * time.Second

var queryFields = []string{
	"index", "name", "memory.total", "memory.free", "utilization.gpu", "temperature.gpu",
}

// SMIProber shells out to nvidia-smi. A host without the binary or without
// devices yields an empty slice, not an error, so the service degrades to
// CPU-only operation.
type SMIProber struct {
	binary string
}

func NewSMIProber(binary string) *SMIProber {
	bin := strings.TrimSpace(binary)
	if bin == "" {
		bin = "nvidia-smi"
	}
	return &SMIProber{binary: bin}
}

func (p *SMIProber) Probe(ctx context.Context) ([]domain.GPUSlot, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, maxProbeTimeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, p.binary,
		"--query-gpu="+strings.Join(queryFields, ","),
		"--format=csv,noheader,nounits",
	)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, nil
	}
	return parseSMIOutput(stdout.String(), time.Now())
}

func parseSMIOutput(output string, now time.Time) ([]domain.GPUSlot, error) {
	var slots []domain.GPUSlot
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != len(queryFields) {
			return nil, fmt.Errorf("unexpected nvidia-smi line: %q", line)
		}
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}

		id, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("gpu index %q: %w", fields[0], err)
		}
		memTotal, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("memory.total %q: %w", fields[2], err)
		}
		memFree, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return nil, fmt.Errorf("memory.free %q: %w", fields[3], err)
		}
		util, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return nil, fmt.Errorf("utilization.gpu %q: %w", fields[4], err)
		}
		temp, err := strconv.ParseFloat(fields[5], 64)
		if err != nil {
			return nil, fmt.Errorf("temperature.gpu %q: %w", fields[5], err)
		}

		// nvidia-smi reports memory in MiB.
		slots = append(slots, domain.GPUSlot{
			ID:            id,
			Name:          fields[1],
			MemoryTotalGB: memTotal / 1024,
			MemoryFreeGB:  memFree / 1024,
			Utilization:   util,
			Temperature:   temp,
			Available:     true,
			UpdatedAt:     now,
		})
	}
	return slots, nil
}
