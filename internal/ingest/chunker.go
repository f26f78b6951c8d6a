package ingest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"visionstream/internal/domain"
)

// Chunker splits an uploaded file into fixed-duration mp4 chunks, one job
// unit each. Splitting is stream-copy only; frames are never re-encoded.
type Chunker struct {
	ffmpeg      string
	prober      *Prober
	chunkDir    string
	durationSec int
}

func NewChunker(ffmpegBinary, ffprobeBinary, chunkDir string, durationSec int) *Chunker {
	bin := strings.TrimSpace(ffmpegBinary)
	if bin == "" {
		bin = "ffmpeg"
	}
	if durationSec <= 0 {
		durationSec = 30
	}
	return &Chunker{
		ffmpeg:      bin,
		prober:      NewProber(ffprobeBinary),
		chunkDir:    chunkDir,
		durationSec: durationSec,
	}
}

// ChunkName builds the canonical chunk file name.
func ChunkName(cameraID int64, jobID domain.JobID, index int) string {
	return fmt.Sprintf("chunk_%d_%s_%04d.mp4", cameraID, jobID, index)
}

// ChunkCount is the number of chunks a source with frameCount frames splits
// into at framesPerChunk frames each.
func ChunkCount(frameCount, framesPerChunk int) int {
	if frameCount <= 0 || framesPerChunk <= 0 {
		return 0
	}
	return (frameCount + framesPerChunk - 1) / framesPerChunk
}

// FramesPerChunk truncates fps*duration to whole frames.
func FramesPerChunk(fps float64, durationSec int) int {
	return int(fps * float64(durationSec))
}

// Split cuts the source file into chunks named after the camera and job.
// An empty trailing chunk produced by a cut falling exactly on the last frame
// is removed from disk and not reported.
func (c *Chunker) Split(ctx context.Context, sourcePath string, cameraID int64, jobID domain.JobID) ([]domain.ChunkMeta, error) {
	info, err := c.prober.Probe(ctx, sourcePath)
	if err != nil {
		return nil, fmt.Errorf("probe source: %w", err)
	}
	if info.FrameCount == 0 {
		return nil, fmt.Errorf("%w: source has no frame count", domain.ErrUnsupported)
	}
	framesPerChunk := FramesPerChunk(info.FPS, c.durationSec)
	if framesPerChunk <= 0 {
		return nil, fmt.Errorf("invalid frames per chunk for fps %v", info.FPS)
	}

	if err := os.MkdirAll(c.chunkDir, 0o755); err != nil {
		return nil, fmt.Errorf("chunk dir: %w", err)
	}
	pattern := filepath.Join(c.chunkDir, fmt.Sprintf("chunk_%d_%s_%%04d.mp4", cameraID, jobID))

	cmd := exec.CommandContext(ctx, c.ffmpeg,
		"-nostdin", "-v", "error",
		"-i", sourcePath,
		"-c", "copy",
		"-f", "segment",
		"-segment_time", fmt.Sprintf("%d", c.durationSec),
		"-reset_timestamps", "1",
		pattern,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("ffmpeg segment failed: %w", err)
		}
		return nil, fmt.Errorf("ffmpeg segment failed: %w: %s", err, msg)
	}

	total := ChunkCount(info.FrameCount, framesPerChunk)
	chunks := make([]domain.ChunkMeta, 0, total)
	for i := 0; ; i++ {
		path := filepath.Join(c.chunkDir, ChunkName(cameraID, jobID, i))
		stat, err := os.Stat(path)
		if err != nil {
			break
		}
		if stat.Size() == 0 {
			os.Remove(path)
			continue
		}
		start := i * framesPerChunk
		count := framesPerChunk
		if start+count > info.FrameCount {
			count = info.FrameCount - start
		}
		chunks = append(chunks, domain.ChunkMeta{
			Index:      i,
			Path:       path,
			CameraID:   cameraID,
			JobID:      jobID,
			StartFrame: start,
			FrameCount: count,
			FPS:        info.FPS,
		})
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("ffmpeg produced no chunks for %s", sourcePath)
	}
	return chunks, nil
}
