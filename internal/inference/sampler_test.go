package inference

import "testing"

func TestSamplerBaseRate(t *testing.T) {
	s := NewSampler(5, 15)
	// 30/5 = every 6th frame.
	for _, frame := range []int{0, 6, 12, 600} {
		if !s.Take(frame) {
			t.Errorf("frame %d should be taken at base rate", frame)
		}
	}
	for _, frame := range []int{1, 5, 7, 601} {
		if s.Take(frame) {
			t.Errorf("frame %d should be skipped at base rate", frame)
		}
	}
}

func TestSamplerBurstRate(t *testing.T) {
	s := NewSampler(5, 15)
	s.SetBurst(true)
	// 30/15 = every 2nd frame.
	if !s.Take(0) || !s.Take(2) || s.Take(1) || s.Take(3) {
		t.Fatal("burst rate should take every 2nd frame")
	}
	s.SetBurst(false)
	if s.Take(2) {
		t.Fatal("leaving burst should restore the base interval")
	}
}

func TestSamplerRateAboveNominalTakesEveryFrame(t *testing.T) {
	s := NewSampler(60, 60)
	for frame := 0; frame < 5; frame++ {
		if !s.Take(frame) {
			t.Fatalf("frame %d should be taken when fps exceeds nominal", frame)
		}
	}
}
