// Package ingest brings video into the system: upload validation, source
// probing, frame decoding and chunking. All media work is delegated to
// ffmpeg/ffprobe child processes.
package ingest

import (
	"fmt"
	"path/filepath"
	"strings"

	"visionstream/internal/domain"
)

// allowedExtensions are the container formats accepted for upload.
var allowedExtensions = map[string]bool{
	".mp4": true,
	".avi": true,
	".mov": true,
	".mkv": true,
	".flv": true,
	".wmv": true,
	".m4v": true,
}

const MaxUploadBytes = int64(10) << 30

// ValidateUpload checks a file name and size before any bytes are stored.
func ValidateUpload(filename string, size int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return fmt.Errorf("%w: file has no extension", domain.ErrUnsupported)
	}
	if !allowedExtensions[ext] {
		return fmt.Errorf("%w: extension %s", domain.ErrUnsupported, ext)
	}
	if size == 0 {
		return fmt.Errorf("%w: empty file", domain.ErrUnsupported)
	}
	if size > MaxUploadBytes {
		return fmt.Errorf("%w: file exceeds %d bytes", domain.ErrUnsupported, MaxUploadBytes)
	}
	return nil
}

// ValidateStreamURL checks that url matches the camera's stream type. File
// cameras take a bare filesystem path, not a URL.
func ValidateStreamURL(url string, kind domain.StreamType) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return fmt.Errorf("%w: stream url is empty", domain.ErrUnsupported)
	}
	switch kind {
	case domain.StreamRTSP:
		if !strings.HasPrefix(url, "rtsp://") {
			return fmt.Errorf("%w: rtsp camera needs an rtsp:// url", domain.ErrUnsupported)
		}
	case domain.StreamHTTP:
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return fmt.Errorf("%w: http camera needs an http(s):// url", domain.ErrUnsupported)
		}
	case domain.StreamFile:
		if strings.Contains(url, "://") {
			return fmt.Errorf("%w: file camera takes a path, got url %q", domain.ErrUnsupported, url)
		}
	default:
		return fmt.Errorf("%w: stream type %q", domain.ErrUnsupported, kind)
	}
	return nil
}
