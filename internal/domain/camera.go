package domain

import (
	"errors"
	"strings"
	"time"
)

type CameraStatus string

const (
	CameraActive      CameraStatus = "active"
	CameraInactive    CameraStatus = "inactive"
	CameraMaintenance CameraStatus = "maintenance"
	CameraError       CameraStatus = "error"
)

type StreamType string

const (
	StreamRTSP StreamType = "rtsp"
	StreamHTTP StreamType = "http"
	StreamFile StreamType = "file"
)

// Zone is a named polygon in frame coordinates used by zone rules.
type Zone struct {
	ID      string       `json:"id"`
	Name    string       `json:"name,omitempty"`
	Polygon [][2]float64 `json:"polygon"`
}

type Camera struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Location    string         `json:"location,omitempty"`
	StreamURL   string         `json:"streamUrl,omitempty"`
	StreamType  StreamType     `json:"streamType"`
	Status      CameraStatus   `json:"status"`
	Zones       []Zone         `json:"zones,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Validate checks domain invariants for Camera.
func (c Camera) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("camera name is required")
	}
	switch c.StreamType {
	case StreamRTSP, StreamHTTP, StreamFile:
	default:
		return errors.New("invalid stream type: " + string(c.StreamType))
	}
	switch c.Status {
	case CameraActive, CameraInactive, CameraMaintenance, CameraError:
	case "":
		return errors.New("status is required")
	default:
		return errors.New("invalid status: " + string(c.Status))
	}
	return nil
}
