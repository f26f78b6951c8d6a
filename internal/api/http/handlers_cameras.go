package apihttp

import (
	"encoding/json"
	"net/http"

	"visionstream/internal/domain"
	"visionstream/internal/ingest"
)

func (s *Server) handleCameras(w http.ResponseWriter, r *http.Request) {
	if s.cameras == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "camera store not configured")
		return
	}
	switch r.Method {
	case http.MethodGet:
		filter := domain.CameraFilter{
			Status:   domain.CameraStatus(r.URL.Query().Get("status")),
			Location: r.URL.Query().Get("location"),
		}
		var err error
		if filter.Limit, err = parseInt64Query(r.URL.Query().Get("limit")); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid limit")
			return
		}
		if filter.Offset, err = parseInt64Query(r.URL.Query().Get("offset")); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid offset")
			return
		}
		cameras, err := s.cameras.List(r.Context(), filter)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cameras)
	case http.MethodPost:
		var camera domain.Camera
		if err := json.NewDecoder(r.Body).Decode(&camera); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid json body")
			return
		}
		if camera.Status == "" {
			camera.Status = domain.CameraActive
		}
		if err := camera.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		// A camera may be created without a URL; stream start rejects that.
		if camera.StreamURL != "" {
			if err := ingest.ValidateStreamURL(camera.StreamURL, camera.StreamType); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
				return
			}
		}
		created, err := s.cameras.Create(r.Context(), camera)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (s *Server) handleCameraByID(w http.ResponseWriter, r *http.Request) {
	if s.cameras == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "camera store not configured")
		return
	}
	id, sub, err := pathID(r.URL.Path, "/cameras/")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid camera id")
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		camera, err := s.cameras.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, camera)
	case sub == "" && r.Method == http.MethodPut:
		var camera domain.Camera
		if err := json.NewDecoder(r.Body).Decode(&camera); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid json body")
			return
		}
		camera.ID = id
		if err := camera.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		if camera.StreamURL != "" {
			if err := ingest.ValidateStreamURL(camera.StreamURL, camera.StreamType); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
				return
			}
		}
		if err := s.cameras.Update(r.Context(), camera); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, camera)
	case sub == "status" && r.Method == http.MethodPatch:
		var body struct {
			Status domain.CameraStatus `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid json body")
			return
		}
		switch body.Status {
		case domain.CameraActive, domain.CameraInactive, domain.CameraMaintenance, domain.CameraError:
		default:
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid status")
			return
		}
		if err := s.cameras.UpdateStatus(r.Context(), id, body.Status); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": body.Status})
	case sub == "" && r.Method == http.MethodDelete:
		if err := s.cameras.Delete(r.Context(), id); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}
