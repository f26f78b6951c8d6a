package inference

// Sampler decides which frames of a nominal 30fps source are worth running
// through the detector. The base rate applies normally; the burst rate takes
// over while recent activity warrants a closer look.
type Sampler struct {
	baseFPS  int
	burstFPS int
	burst    bool
}

const nominalFPS = 30

func NewSampler(baseFPS, burstFPS int) *Sampler {
	if baseFPS <= 0 {
		baseFPS = 5
	}
	if burstFPS <= 0 {
		burstFPS = 15
	}
	return &Sampler{baseFPS: baseFPS, burstFPS: burstFPS}
}

// SetBurst switches between base and burst sampling.
func (s *Sampler) SetBurst(on bool) { s.burst = on }

// Burst reports the current mode.
func (s *Sampler) Burst() bool { return s.burst }

// Take reports whether the frame should be processed.
func (s *Sampler) Take(frameNumber int) bool {
	fps := s.baseFPS
	if s.burst {
		fps = s.burstFPS
	}
	interval := nominalFPS / fps
	if interval < 1 {
		interval = 1
	}
	return frameNumber%interval == 0
}
