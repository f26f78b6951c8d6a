package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"visionstream/internal/domain"
)

const maxProbeTimeout = 30 * time.Second

// Prober reads stream properties with ffprobe.
type Prober struct {
	binary string
}

func NewProber(binary string) *Prober {
	bin := strings.TrimSpace(binary)
	if bin == "" {
		bin = "ffprobe"
	}
	return &Prober{binary: bin}
}

func (p *Prober) Probe(ctx context.Context, path string) (domain.StreamInfo, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return domain.StreamInfo{}, errors.New("source path is required")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, maxProbeTimeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, p.binary,
		"-v", "quiet",
		"-print_format", "json",
		"-select_streams", "v:0",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return domain.StreamInfo{}, fmt.Errorf("ffprobe failed: %w", err)
		}
		return domain.StreamInfo{}, fmt.Errorf("ffprobe failed: %w: %s", err, msg)
	}
	return parseProbeOutput(stdout.Bytes())
}

type probePayload struct {
	Streams []probeStream `json:"streams"`
}

type probeStream struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	RFrameRate string `json:"r_frame_rate"`
	NbFrames   string `json:"nb_frames"`
}

func parseProbeOutput(data []byte) (domain.StreamInfo, error) {
	var payload probePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return domain.StreamInfo{}, fmt.Errorf("ffprobe output parse failed: %w", err)
	}
	if len(payload.Streams) == 0 {
		return domain.StreamInfo{}, errors.New("no video stream found")
	}
	s := payload.Streams[0]

	info := domain.StreamInfo{Width: s.Width, Height: s.Height}
	if fps, err := parseFrameRate(s.RFrameRate); err == nil {
		info.FPS = fps
	}
	// Live streams carry no frame count; leave it at zero.
	if s.NbFrames != "" {
		if n, err := strconv.Atoi(s.NbFrames); err == nil && n > 0 {
			info.FrameCount = n
		}
	}
	if info.Width <= 0 || info.Height <= 0 {
		return domain.StreamInfo{}, errors.New("video stream has no dimensions")
	}
	return info, nil
}

// parseFrameRate parses ffprobe's rational form, e.g. "30000/1001".
func parseFrameRate(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	num, den, found := strings.Cut(raw, "/")
	if !found {
		return strconv.ParseFloat(raw, 64)
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, err
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return 0, errors.New("zero denominator in frame rate")
	}
	return n / d, nil
}
