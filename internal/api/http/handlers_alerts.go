package apihttp

import (
	"encoding/json"
	"net/http"

	"visionstream/internal/domain"
)

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if s.alerts == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "alert store not configured")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	query := r.URL.Query()
	filter := domain.AlertFilter{
		Status:  domain.AlertStatus(query.Get("status")),
		Channel: domain.Channel(query.Get("channel")),
	}
	var err error
	if filter.EventID, err = parseInt64Query(query.Get("eventId")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid eventId")
		return
	}
	if filter.Limit, err = parseInt64Query(query.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid limit")
		return
	}
	if filter.Offset, err = parseInt64Query(query.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid offset")
		return
	}
	alerts, err := s.alerts.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleAlertByID(w http.ResponseWriter, r *http.Request) {
	if s.alerts == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "alert store not configured")
		return
	}
	id, sub, err := pathID(r.URL.Path, "/alerts/")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid alert id")
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		alert, err := s.alerts.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, alert)
	case sub == "status" && r.Method == http.MethodPatch:
		var body struct {
			Status domain.AlertStatus `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid json body")
			return
		}
		switch body.Status {
		case domain.AlertPending, domain.AlertSent, domain.AlertAcknowledged, domain.AlertResolved:
		default:
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid status")
			return
		}
		if err := s.alerts.UpdateStatus(r.Context(), id, body.Status); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": body.Status})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}
