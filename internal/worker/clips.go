// Package worker runs assigned jobs: frame decoding, inference, rule
// evaluation and event emission for one job at a time.
package worker

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"visionstream/internal/metrics"
)

// ClipExtractor cuts short evidence clips around event frames with ffmpeg.
type ClipExtractor struct {
	ffmpeg     string
	clipDir    string
	paddingSec int
}

func NewClipExtractor(ffmpegBinary, clipDir string, paddingSec int) *ClipExtractor {
	bin := strings.TrimSpace(ffmpegBinary)
	if bin == "" {
		bin = "ffmpeg"
	}
	if paddingSec <= 0 {
		paddingSec = 5
	}
	return &ClipExtractor{ffmpeg: bin, clipDir: clipDir, paddingSec: paddingSec}
}

// ClipName builds the canonical clip file name from the event identity and
// its UTC timestamp.
func ClipName(eventID int64, cameraID int64, ts time.Time) string {
	return fmt.Sprintf("event_%d_camera_%d_%s.mp4", eventID, cameraID, ts.UTC().Format("20060102_150405"))
}

// ClipWindow clamps the padded half-open frame range [eventFrame-pad,
// eventFrame+pad) around eventFrame to the source bounds [0, frameCount).
func ClipWindow(eventFrame, frameCount int, fps float64, paddingSec int) (start, end int) {
	pad := int(fps * float64(paddingSec))
	start = eventFrame - pad
	if start < 0 {
		start = 0
	}
	end = eventFrame + pad
	if end > frameCount {
		end = frameCount
	}
	if end < start {
		end = start
	}
	return start, end
}

// Extract writes the clip and returns its path. A window that clamps to zero
// frames produces no clip: any partial file is removed and an empty path is
// returned without error.
func (c *ClipExtractor) Extract(ctx context.Context, sourcePath string, eventID, cameraID int64, eventFrame, frameCount int, fps float64, ts time.Time) (string, error) {
	if fps <= 0 {
		return "", fmt.Errorf("invalid fps %v", fps)
	}
	start, end := ClipWindow(eventFrame, frameCount, fps, c.paddingSec)
	frames := end - start
	if frameCount <= 0 || start >= frameCount || frames <= 0 {
		return "", nil
	}

	if err := os.MkdirAll(c.clipDir, 0o755); err != nil {
		return "", fmt.Errorf("clip dir: %w", err)
	}
	path := filepath.Join(c.clipDir, ClipName(eventID, cameraID, ts))

	cmd := exec.CommandContext(ctx, c.ffmpeg,
		"-nostdin", "-v", "error",
		"-ss", fmt.Sprintf("%.3f", float64(start)/fps),
		"-i", sourcePath,
		"-frames:v", fmt.Sprintf("%d", frames),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-an",
		"-y", path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.Remove(path)
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("ffmpeg clip failed: %w", err)
		}
		return "", fmt.Errorf("ffmpeg clip failed: %w: %s", err, msg)
	}
	if stat, err := os.Stat(path); err != nil || stat.Size() == 0 {
		os.Remove(path)
		return "", nil
	}
	metrics.ClipsExtractedTotal.Inc()
	return path, nil
}
