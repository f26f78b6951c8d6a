package apihttp

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"visionstream/internal/domain"
	"visionstream/internal/ingest"
)

type submitJobRequest struct {
	CameraID   int64             `json:"cameraId"`
	SourceType domain.SourceType `json:"sourceType"`
	SourcePath string            `json:"sourcePath"`
	Priority   int               `json:"priority"`
	Metadata   map[string]any    `json:"metadata,omitempty"`
}

type submitJobResponse struct {
	JobID domain.JobID `json:"jobId"`
}

type uploadResponse struct {
	BatchID string         `json:"batchId"`
	JobIDs  []domain.JobID `json:"jobIds"`
	Chunks  int            `json:"chunks"`
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid json body")
		return
	}

	job := domain.Job{
		CameraID:   req.CameraID,
		SourceType: req.SourceType,
		SourcePath: req.SourcePath,
		Priority:   req.Priority,
		Status:     domain.JobPending,
		Metadata:   req.Metadata,
	}
	id, err := s.coordinator.SubmitJob(r.Context(), job)
	if err != nil {
		if isValidationError(err) {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, submitJobResponse{JobID: id})
}

func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/jobs/"), "/")
	if rest == "stats" {
		s.handleJobStats(w, r)
		return
	}
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "job id is required")
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		record, err := s.coordinator.Status(r.Context(), domain.JobID(id))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, record)
	case sub == "cancel" && r.Method == http.MethodPost:
		if err := s.coordinator.Cancel(r.Context(), domain.JobID(id)); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (s *Server) handleJobStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	stats, err := s.coordinator.Stats(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleUpload accepts a multipart video upload, splits it into chunks and
// submits one job per chunk under a shared batch id.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid multipart body")
		return
	}

	cameraID, err := strconv.ParseInt(r.FormValue("cameraId"), 10, 64)
	if err != nil || cameraID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "cameraId is required")
		return
	}
	priority := 0
	if raw := strings.TrimSpace(r.FormValue("priority")); raw != "" {
		priority, err = strconv.Atoi(raw)
		if err != nil || priority < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "priority must be a non-negative integer")
			return
		}
	}

	if s.cameras != nil {
		if _, err := s.cameras.Get(r.Context(), cameraID); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "file field is required")
		return
	}
	defer file.Close()

	if err := ingest.ValidateUpload(header.Filename, header.Size); err != nil {
		writeDomainError(w, err)
		return
	}

	path, err := saveUploadedFile(file, s.uploadDir, header.Filename)
	if err != nil {
		s.logger.Error("upload save failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "could not store upload")
		return
	}

	batchID := uuid.NewString()
	jobs := make([]domain.Job, 0, 1)
	if s.chunker != nil {
		chunks, err := s.chunker.Split(r.Context(), path, cameraID, domain.JobID(batchID))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		totalFrames := 0
		for _, chunk := range chunks {
			totalFrames += chunk.FrameCount
		}
		for _, chunk := range chunks {
			jobs = append(jobs, domain.Job{
				CameraID:   cameraID,
				SourceType: domain.SourceFile,
				SourcePath: chunk.Path,
				Priority:   priority,
				Status:     domain.JobPending,
				Metadata: map[string]any{
					"batch_id":      batchID,
					"chunk_index":   chunk.Index,
					"start_frame":   chunk.StartFrame,
					"end_frame":     chunk.StartFrame + chunk.FrameCount,
					"frame_count":   chunk.FrameCount,
					"original_file": path,
					"total_frames":  totalFrames,
				},
			})
		}
	} else {
		jobs = append(jobs, domain.Job{
			CameraID:   cameraID,
			SourceType: domain.SourceFile,
			SourcePath: path,
			Priority:   priority,
			Status:     domain.JobPending,
			Metadata:   map[string]any{"batch_id": batchID},
		})
	}

	ids := make([]domain.JobID, 0, len(jobs))
	for _, job := range jobs {
		id, err := s.coordinator.SubmitJob(r.Context(), job)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		ids = append(ids, id)
	}
	writeJSON(w, http.StatusAccepted, uploadResponse{BatchID: batchID, JobIDs: ids, Chunks: len(ids)})
}

type streamStartRequest struct {
	CameraID int64 `json:"cameraId"`
	Priority *int  `json:"priority,omitempty"`
}

// handleStreamStart submits a live-stream job for a configured camera.
// Streams default to a higher priority than uploads so live monitoring is
// not starved by batch work.
func (s *Server) handleStreamStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req streamStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid json body")
		return
	}
	if s.cameras == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "camera store not configured")
		return
	}
	camera, err := s.cameras.Get(r.Context(), req.CameraID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if camera.StreamURL == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "camera has no stream url")
		return
	}

	priority := 1
	if req.Priority != nil {
		if *req.Priority < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "priority must be a non-negative integer")
			return
		}
		priority = *req.Priority
	}

	id, err := s.coordinator.SubmitJob(r.Context(), domain.Job{
		CameraID:   camera.ID,
		SourceType: domain.SourceStream,
		SourcePath: camera.StreamURL,
		Priority:   priority,
		Status:     domain.JobPending,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, submitJobResponse{JobID: id})
}

type streamTestRequest struct {
	URL string `json:"url"`
}

type streamTestResponse struct {
	Reachable bool              `json:"reachable"`
	Info      domain.StreamInfo `json:"info,omitzero"`
	Error     string            `json:"error,omitempty"`
}

// handleStreamTest probes a stream URL without submitting a job.
func (s *Server) handleStreamTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req streamTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "url is required")
		return
	}
	if s.probe == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "media probe not configured")
		return
	}
	info, err := s.probe.Probe(r.Context(), req.URL)
	if err != nil {
		writeJSON(w, http.StatusOK, streamTestResponse{Reachable: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, streamTestResponse{Reachable: true, Info: info})
}

// isValidationError distinguishes bad submissions from infrastructure
// failures; domain.Job.Validate returns plain errors without a sentinel.
func isValidationError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "required") || strings.Contains(msg, "invalid") || strings.Contains(msg, "must")
}
