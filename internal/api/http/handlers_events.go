package apihttp

import (
	"encoding/json"
	"net/http"

	"visionstream/internal/domain"
)

func eventFilterFromQuery(r *http.Request) (domain.EventFilter, error) {
	query := r.URL.Query()
	filter := domain.EventFilter{
		EventType: domain.EventType(query.Get("type")),
		Severity:  domain.Severity(query.Get("severity")),
	}
	var err error
	if filter.CameraID, err = parseInt64Query(query.Get("cameraId")); err != nil {
		return domain.EventFilter{}, err
	}
	if filter.Acknowledged, err = parseBoolQuery(query.Get("acknowledged")); err != nil {
		return domain.EventFilter{}, err
	}
	if filter.Since, err = parseTimeQuery(query.Get("since")); err != nil {
		return domain.EventFilter{}, err
	}
	if filter.Until, err = parseTimeQuery(query.Get("until")); err != nil {
		return domain.EventFilter{}, err
	}
	if filter.Limit, err = parseInt64Query(query.Get("limit")); err != nil {
		return domain.EventFilter{}, err
	}
	if filter.Offset, err = parseInt64Query(query.Get("offset")); err != nil {
		return domain.EventFilter{}, err
	}
	return filter, nil
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "event store not configured")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	filter, err := eventFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	events, err := s.events.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleEventByID(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "event store not configured")
		return
	}
	rest := r.URL.Path
	if rest == "/events/counts" {
		s.handleEventCounts(w, r)
		return
	}
	id, sub, err := pathID(rest, "/events/")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid event id")
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		event, err := s.events.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, event)
	case sub == "acknowledge" && r.Method == http.MethodPost:
		var userID int64
		if identity, ok := identityFromContext(r.Context()); ok {
			userID = identity.UserID
		}
		var body struct {
			UserID int64 `json:"userId"`
		}
		// The body is optional; an authenticated identity wins over it.
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && userID == 0 {
			userID = body.UserID
		}
		if err := s.events.Acknowledge(r.Context(), id, userID); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "acknowledged": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (s *Server) handleEventCounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	filter, err := eventFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	counts, err := s.events.CountBySeverity(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}
