package redisq

import (
	"testing"
	"time"
)

func TestScorePriorityDominates(t *testing.T) {
	now := time.Now()
	low := Score(1, now.Add(-time.Hour))
	high := Score(5, now)
	if high <= low {
		t.Fatalf("higher priority must outscore older low-priority job: %v <= %v", high, low)
	}
}

func TestScoreFIFOWithinPriority(t *testing.T) {
	now := time.Now()
	older := Score(3, now.Add(-time.Minute))
	newer := Score(3, now)
	if older <= newer {
		t.Fatalf("older job must outscore newer one at equal priority: %v <= %v", older, newer)
	}
}

func TestScoreZeroPriority(t *testing.T) {
	if Score(0, time.Now()) <= 0 {
		t.Fatal("score must stay positive for priority 0")
	}
}
