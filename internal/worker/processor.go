package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"visionstream/internal/domain"
	"visionstream/internal/domain/ports"
	"visionstream/internal/inference"
)

// burstWindow is how long the sampler stays at the burst rate after an event.
const burstWindow = 30 * time.Second

// Processor runs one job end to end: decode, sample, detect, track, evaluate
// and emit. Cancellation arrives through the context; the processor returns
// the context error promptly so the dispatcher can settle the job.
type Processor struct {
	opener   ports.SourceOpener
	detector ports.Detector
	cameras  ports.CameraRepository
	rules    ports.RuleRepository
	engine   *RuleEngine
	emitter  *Emitter
	baseFPS  int
	burstFPS int
	logger   *slog.Logger
}

func NewProcessor(
	opener ports.SourceOpener,
	detector ports.Detector,
	cameras ports.CameraRepository,
	rules ports.RuleRepository,
	engine *RuleEngine,
	emitter *Emitter,
	baseFPS, burstFPS int,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		opener:   opener,
		detector: detector,
		cameras:  cameras,
		rules:    rules,
		engine:   engine,
		emitter:  emitter,
		baseFPS:  baseFPS,
		burstFPS: burstFPS,
		logger:   logger,
	}
}

func (p *Processor) Process(ctx context.Context, job domain.Job) error {
	camera, err := p.cameras.Get(ctx, job.CameraID)
	if err != nil {
		return fmt.Errorf("load camera %d: %w", job.CameraID, err)
	}
	activeRules, err := p.rules.List(ctx, domain.RuleFilter{ActiveOnly: true, CameraID: job.CameraID})
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	source, err := p.opener.Open(ctx, job.SourceType, job.SourcePath)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer source.Close()
	info := source.Info()

	tracker := inference.NewTracker()
	sampler := inference.NewSampler(p.baseFPS, p.burstFPS)
	var burstUntil time.Time

	// Chunk jobs decode a slice of a larger file. The decoder numbers frames
	// from zero, so firings carry start_frame-offset numbers; clips are cut
	// from the original file when the chunk metadata names it.
	offset := metaInt(job.Metadata, "start_frame")
	clip := ClipSpec{Path: job.SourcePath, FrameCount: info.FrameCount, FPS: info.FPS}
	clipOffset := offset
	if original := metaString(job.Metadata, "original_file"); original != "" {
		clip.Path = original
		clipOffset = 0
		if total := metaInt(job.Metadata, "total_frames"); total > 0 {
			clip.FrameCount = total
		}
	}

	log := p.logger.With("job_id", job.ID, "camera_id", job.CameraID)
	log.Info("processing started", "source", job.SourcePath, "fps", info.FPS, "frames", info.FrameCount)

	processed := 0
	emitted := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame, err := source.ReadFrame(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}

		if sampler.Burst() && time.Now().After(burstUntil) {
			sampler.SetBurst(false)
		}
		if !sampler.Take(frame.Number) {
			continue
		}

		detections, err := p.detector.Detect(ctx, frame)
		if err != nil {
			if errors.Is(err, inference.ErrModelNotLoaded) {
				return err
			}
			log.Warn("detection failed", "frame", frame.Number, "error", err)
			continue
		}
		processed++

		absFrame := frame.Number + offset
		tracks := tracker.Update(absFrame, detections)
		input := domain.ConditionInput{
			Detections: detections,
			Tracks:     tracks,
			Zones:      camera.Zones,
		}
		for _, firing := range p.engine.Evaluate(activeRules, job.CameraID, absFrame, input) {
			spec := clip
			spec.Frame = absFrame - clipOffset
			if _, err := p.emitter.Emit(ctx, firing, job.CameraID, spec); err != nil {
				log.Error("event emission failed", "rule", firing.Rule.Name, "error", err)
				continue
			}
			emitted++
			sampler.SetBurst(true)
			burstUntil = time.Now().Add(burstWindow)
		}
	}

	log.Info("processing finished", "frames_processed", processed, "events_emitted", emitted)
	return nil
}

// metaInt reads a numeric metadata value. Jobs round-trip through JSON, so
// numbers arrive as float64.
func metaInt(meta map[string]any, key string) int {
	switch v := meta[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func metaString(meta map[string]any, key string) string {
	s, _ := meta[key].(string)
	return s
}
