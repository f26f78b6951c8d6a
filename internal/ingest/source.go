package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"visionstream/internal/domain"
	"visionstream/internal/domain/ports"
)

const (
	rtspConnectTimeout = 5 * time.Second
	httpProbeTimeout   = 10 * time.Second
)

// Opener resolves job sources into decoding ffmpeg child processes. Open
// either returns a source that has already produced its first frame or an
// error; callers never receive a half-open source.
type Opener struct {
	ffmpeg     string
	prober     *Prober
	httpClient *http.Client
}

func NewOpener(ffmpegBinary, ffprobeBinary string) *Opener {
	bin := strings.TrimSpace(ffmpegBinary)
	if bin == "" {
		bin = "ffmpeg"
	}
	return &Opener{
		ffmpeg:     bin,
		prober:     NewProber(ffprobeBinary),
		httpClient: &http.Client{Timeout: httpProbeTimeout},
	}
}

func (o *Opener) Open(ctx context.Context, sourceType domain.SourceType, path string) (ports.Source, error) {
	switch sourceType {
	case domain.SourceFile:
		return o.openFile(ctx, path)
	case domain.SourceStream:
		return o.openStream(ctx, path)
	default:
		return nil, fmt.Errorf("%w: source type %q", domain.ErrUnsupported, sourceType)
	}
}

func (o *Opener) openFile(ctx context.Context, path string) (ports.Source, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("source file: %w", err)
	}
	info, err := o.prober.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	return o.startDecoder(ctx, path, nil, info, 0)
}

func (o *Opener) openStream(ctx context.Context, url string) (ports.Source, error) {
	switch {
	case strings.HasPrefix(url, "rtsp://"):
		info, err := o.prober.Probe(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("rtsp probe: %w", err)
		}
		info.FrameCount = 0
		extra := []string{"-rtsp_transport", "tcp", "-probesize", "32", "-analyzeduration", "0"}
		return o.startDecoder(ctx, url, extra, info, rtspConnectTimeout)
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		if err := o.probeHTTP(ctx, url); err != nil {
			return nil, err
		}
		info, err := o.prober.Probe(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("http probe: %w", err)
		}
		info.FrameCount = 0
		return o.startDecoder(ctx, url, nil, info, 0)
	default:
		return nil, fmt.Errorf("%w: stream url %q", domain.ErrUnsupported, url)
	}
}

// probeHTTP checks reachability with a HEAD request before starting a
// decoder. Redirect statuses count as reachable.
func (o *Opener) probeHTTP(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return fmt.Errorf("http probe: %w", err)
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http probe: %w", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusMovedPermanently, http.StatusFound:
		return nil
	}
	return fmt.Errorf("http probe: unexpected status %d", resp.StatusCode)
}

// startDecoder launches ffmpeg decoding the source into raw RGB frames on
// stdout. When connectTimeout is nonzero the first frame must arrive within
// it, otherwise the decoder is killed and an error returned.
func (o *Opener) startDecoder(ctx context.Context, path string, extraArgs []string, info domain.StreamInfo, connectTimeout time.Duration) (*ffmpegSource, error) {
	if info.Width <= 0 || info.Height <= 0 {
		return nil, errors.New("decoder needs frame dimensions")
	}
	args := append([]string{"-nostdin", "-v", "quiet"}, extraArgs...)
	args = append(args,
		"-i", path,
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	)
	cmd := exec.Command(o.ffmpeg, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("decoder pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start decoder: %w", err)
	}

	src := &ffmpegSource{
		cmd:       cmd,
		stdout:    stdout,
		info:      info,
		frameSize: info.Width * info.Height * 3,
	}

	if connectTimeout > 0 {
		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		frame, err := src.ReadFrame(connectCtx)
		if err != nil {
			src.Close()
			return nil, fmt.Errorf("stream connect: %w", err)
		}
		src.pending = &frame
	}
	return src, nil
}

type ffmpegSource struct {
	cmd       *exec.Cmd
	stdout    io.ReadCloser
	info      domain.StreamInfo
	frameSize int
	next      int
	pending   *domain.Frame
	closed    bool
}

func (s *ffmpegSource) Info() domain.StreamInfo { return s.info }

func (s *ffmpegSource) ReadFrame(ctx context.Context) (domain.Frame, error) {
	if s.pending != nil {
		frame := *s.pending
		s.pending = nil
		return frame, nil
	}
	if s.closed {
		return domain.Frame{}, io.EOF
	}

	buf := make([]byte, s.frameSize)
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := io.ReadFull(s.stdout, buf)
		done <- result{n, err}
	}()

	select {
	case <-ctx.Done():
		s.Close()
		return domain.Frame{}, ctx.Err()
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, io.ErrUnexpectedEOF) {
				return domain.Frame{}, io.EOF
			}
			return domain.Frame{}, res.err
		}
	}

	frame := domain.Frame{
		Number: s.next,
		Width:  s.info.Width,
		Height: s.info.Height,
		Data:   buf,
	}
	s.next++
	return frame, nil
}

func (s *ffmpegSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.stdout.Close()
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	// Reap the child; the error is expected after a kill.
	s.cmd.Wait()
	return nil
}

var _ ports.SourceOpener = (*Opener)(nil)
