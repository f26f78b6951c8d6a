package apihttp

import (
	"encoding/json"
	"net/http"

	"visionstream/internal/domain"
)

// ruleBody is the wire form of a rule. Conditions travel as raw JSON and are
// parsed into typed values at this boundary so that bad kinds are rejected
// with a 400 instead of surfacing later in the worker.
type ruleBody struct {
	Name                string               `json:"name"`
	Description         string               `json:"description,omitempty"`
	EventCode           string               `json:"eventCode"`
	EventType           domain.EventType     `json:"eventType"`
	IsActive            bool                 `json:"isActive"`
	ConfidenceThreshold float64              `json:"confidenceThreshold"`
	CameraIDs           []int64              `json:"cameraIds,omitempty"`
	Conditions          json.RawMessage      `json:"conditions,omitempty"`
	AlertTargets        []domain.AlertTarget `json:"alertConfig,omitempty"`
}

type ruleView struct {
	domain.Rule
	Conditions json.RawMessage `json:"conditions,omitempty"`
}

func ruleToView(rule domain.Rule) (ruleView, error) {
	view := ruleView{Rule: rule}
	if len(rule.Conditions) > 0 {
		raw, err := domain.EncodeConditions(rule.Conditions)
		if err != nil {
			return ruleView{}, err
		}
		view.Conditions = raw
	}
	return view, nil
}

func (b ruleBody) toRule() (domain.Rule, error) {
	conditions, err := domain.ParseConditions(b.Conditions)
	if err != nil {
		return domain.Rule{}, err
	}
	return domain.Rule{
		Name:                b.Name,
		Description:         b.Description,
		EventCode:           b.EventCode,
		EventType:           b.EventType,
		IsActive:            b.IsActive,
		ConfidenceThreshold: b.ConfidenceThreshold,
		CameraIDs:           b.CameraIDs,
		Conditions:          conditions,
		AlertTargets:        b.AlertTargets,
	}, nil
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	if s.rules == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "rule store not configured")
		return
	}
	switch r.Method {
	case http.MethodGet:
		filter := domain.RuleFilter{}
		if active, err := parseBoolQuery(r.URL.Query().Get("active")); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid active")
			return
		} else if active != nil {
			filter.ActiveOnly = *active
		}
		var err error
		if filter.CameraID, err = parseInt64Query(r.URL.Query().Get("cameraId")); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid cameraId")
			return
		}
		if filter.Limit, err = parseInt64Query(r.URL.Query().Get("limit")); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid limit")
			return
		}
		if filter.Offset, err = parseInt64Query(r.URL.Query().Get("offset")); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid offset")
			return
		}
		rules, err := s.rules.List(r.Context(), filter)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		views := make([]ruleView, 0, len(rules))
		for _, rule := range rules {
			view, err := ruleToView(rule)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			views = append(views, view)
		}
		writeJSON(w, http.StatusOK, views)
	case http.MethodPost:
		var body ruleBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid json body")
			return
		}
		rule, err := body.toRule()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		if err := rule.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		created, err := s.rules.Create(r.Context(), rule)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		view, err := ruleToView(created)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, view)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (s *Server) handleRuleByID(w http.ResponseWriter, r *http.Request) {
	if s.rules == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "rule store not configured")
		return
	}
	id, sub, err := pathID(r.URL.Path, "/rules/")
	if err != nil || sub != "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid rule id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		rule, err := s.rules.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		view, err := ruleToView(rule)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	case http.MethodPut:
		var body ruleBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid json body")
			return
		}
		rule, err := body.toRule()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		rule.ID = id
		if err := rule.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		if err := s.rules.Update(r.Context(), rule); err != nil {
			writeDomainError(w, err)
			return
		}
		view, err := ruleToView(rule)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	case http.MethodDelete:
		if err := s.rules.Delete(r.Context(), id); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}
