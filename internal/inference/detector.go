// Package inference talks to the detection model server and turns raw
// detections into stable tracks.
package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"visionstream/internal/domain"
	"visionstream/internal/domain/ports"
	"visionstream/internal/metrics"
)

// ErrModelNotLoaded is returned while the model server is up but has no
// model ready to serve.
var ErrModelNotLoaded = errors.New("model not loaded")

// HTTPDetector calls an external model server over HTTP. The confidence
// threshold is fixed at construction; detections below it are dropped before
// they reach the caller.
type HTTPDetector struct {
	baseURL   string
	threshold float64
	client    *http.Client
}

func NewHTTPDetector(baseURL string, threshold float64, timeout time.Duration) *HTTPDetector {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPDetector{
		baseURL:   strings.TrimRight(baseURL, "/"),
		threshold: threshold,
		client:    &http.Client{Timeout: timeout},
	}
}

type detectRequest struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Frame  string `json:"frame"` // base64 rgb24, row-major
}

type detectResponse struct {
	Detections []struct {
		ClassID    int        `json:"class_id"`
		ClassName  string     `json:"class_name"`
		Confidence float64    `json:"confidence"`
		BBox       [4]float64 `json:"bbox"`
	} `json:"detections"`
}

func (d *HTTPDetector) Detect(ctx context.Context, frame domain.Frame) ([]domain.Detection, error) {
	if len(frame.Data) == 0 {
		return []domain.Detection{}, nil
	}

	body, err := json.Marshal(detectRequest{
		Width:  frame.Width,
		Height: frame.Height,
		Frame:  base64.StdEncoding.EncodeToString(frame.Data),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal detect request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/v1/detect", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build detect request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	defer resp.Body.Close()
	metrics.InferenceDuration.Observe(time.Since(start).Seconds())
	metrics.FramesProcessedTotal.Inc()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusServiceUnavailable:
		return nil, ErrModelNotLoaded
	default:
		return nil, fmt.Errorf("detect: unexpected status %d", resp.StatusCode)
	}

	var payload detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode detect response: %w", err)
	}

	detections := make([]domain.Detection, 0, len(payload.Detections))
	for _, raw := range payload.Detections {
		if raw.Confidence < d.threshold {
			continue
		}
		detections = append(detections, domain.Detection{
			ClassID:    raw.ClassID,
			ClassName:  raw.ClassName,
			Confidence: raw.Confidence,
			BBox: domain.BBox{
				X1: raw.BBox[0], Y1: raw.BBox[1],
				X2: raw.BBox[2], Y2: raw.BBox[3],
			},
		})
	}
	return detections, nil
}

func (d *HTTPDetector) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("model server unreachable: %w", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusServiceUnavailable:
		return ErrModelNotLoaded
	}
	return fmt.Errorf("model server status %d", resp.StatusCode)
}

var _ ports.Detector = (*HTTPDetector)(nil)
