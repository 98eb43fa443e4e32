package handlers

import (
	"net/http"

	"github.com/autoremedy/autoremedy/internal/api"
	"github.com/autoremedy/autoremedy/internal/database"
	"github.com/autoremedy/autoremedy/internal/middleware"
	"github.com/autoremedy/autoremedy/internal/services"
)

// handleListIncidents handles GET /api/incidents
func (h *APIHandler) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	params := api.ParsePagination(r)
	q := r.URL.Query()

	incidents, total, err := h.errorService.GetIncidents(services.IncidentFilter{
		Status:      q.Get("status"),
		Severity:    q.Get("severity"),
		ServiceName: q.Get("service"),
		Environment: q.Get("environment"),
		Limit:       params.PerPage,
		Offset:      params.Offset(),
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	api.RespondJSON(w, http.StatusOK, api.PaginatedResponse{
		Data: api.IncidentsToListItems(incidents),
		Pagination: api.PaginationMeta{
			Page:       params.Page,
			PerPage:    params.PerPage,
			Total:      total,
			TotalPages: params.TotalPages(total),
		},
	})
}

// handleCreateIncident handles POST /api/incidents
func (h *APIHandler) handleCreateIncident(w http.ResponseWriter, r *http.Request) {
	var req api.CreateIncidentRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errs := req.Validate(); errs != nil {
		api.RespondValidationError(w, errs)
		return
	}

	incident, created, err := h.errorService.CreateIncident(services.IncidentReport{
		ErrorType:    req.ErrorType,
		ErrorMessage: req.ErrorMessage,
		StackTrace:   req.StackTrace,
		FilePath:     req.FilePath,
		LineNumber:   req.LineNumber,
		Language:     req.Language,
		Severity:     req.Severity,
		ServiceName:  req.ServiceName,
		Environment:  req.Environment,
		Metadata:     req.Metadata,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		h.publishEvent("incident.created", incident)
	} else {
		h.publishEvent("incident.recurred", incident)
	}
	api.RespondJSON(w, status, incident)
}

// handleGetIncident handles GET /api/incidents/{id}
func (h *APIHandler) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	incident, err := h.errorService.GetIncident(r.PathValue("id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, incident)
}

// handleUpdateIncidentStatus handles PATCH /api/incidents/{id}/status
func (h *APIHandler) handleUpdateIncidentStatus(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateIncidentStatusRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Status == "" {
		api.RespondError(w, http.StatusBadRequest, "status is required")
		return
	}

	incident, err := h.errorService.UpdateIncidentStatus(r.PathValue("id"), database.IncidentStatus(req.Status))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	h.auditService.Record(services.AuditEntry{
		UserID:       middleware.GetUserFromContext(r.Context()),
		Action:       "incident.status_changed",
		ResourceType: "incident",
		ResourceID:   incident.ID,
		Details:      map[string]interface{}{"status": req.Status},
		IPAddress:    r.RemoteAddr,
		UserAgent:    r.UserAgent(),
	})
	h.publishEvent("incident.status_changed", incident)

	api.RespondJSON(w, http.StatusOK, incident)
}

// handleListAttempts handles GET /api/incidents/{id}/attempts
func (h *APIHandler) handleListAttempts(w http.ResponseWriter, r *http.Request) {
	incidentID := r.PathValue("id")
	if _, err := h.errorService.GetIncident(incidentID); err != nil {
		respondServiceError(w, err)
		return
	}

	attempts, err := h.errorService.GetAttemptsForIncident(incidentID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, attempts)
}

// handleCreateAttempt handles POST /api/incidents/{id}/attempts
func (h *APIHandler) handleCreateAttempt(w http.ResponseWriter, r *http.Request) {
	var req api.CreateAttemptRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.RemediationType == "" {
		api.RespondError(w, http.StatusBadRequest, "remediation_type is required")
		return
	}

	attempt, err := h.errorService.CreateRemediationAttempt(r.PathValue("id"), req.RemediationType, req.Description)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	h.publishEvent("attempt.created", attempt)
	api.RespondJSON(w, http.StatusCreated, attempt)
}

// handleGetAttempt handles GET /api/attempts/{id}
func (h *APIHandler) handleGetAttempt(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.errorService.GetRemediationAttempt(r.PathValue("id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, attempt)
}

// handleUpdateAttempt handles PATCH /api/attempts/{id}
func (h *APIHandler) handleUpdateAttempt(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateAttemptRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	update := services.AttemptUpdate{
		AnalysisResult: req.AnalysisResult,
		FixCode:        req.FixCode,
		TestResults:    req.TestResults,
		PRURL:          req.PRURL,
	}
	if req.Status != nil {
		status := database.AttemptStatus(*req.Status)
		update.Status = &status
	}

	attempt, err := h.errorService.UpdateRemediationAttempt(r.PathValue("id"), update)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	h.publishEvent("attempt.updated", attempt)
	api.RespondJSON(w, http.StatusOK, attempt)
}
