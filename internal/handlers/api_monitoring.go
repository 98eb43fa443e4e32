package handlers

import (
	"net/http"

	"github.com/autoremedy/autoremedy/internal/api"
	"github.com/autoremedy/autoremedy/internal/database"
	"github.com/autoremedy/autoremedy/internal/middleware"
	"github.com/autoremedy/autoremedy/internal/services"
)

// handleSystemHealth handles GET /api/monitoring/health
func (h *APIHandler) handleSystemHealth(w http.ResponseWriter, r *http.Request) {
	health, err := h.monitoringService.GetSystemHealth()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, health)
}

// handleFiringAlerts handles GET /api/monitoring/alerts
func (h *APIHandler) handleFiringAlerts(w http.ResponseWriter, r *http.Request) {
	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"firing": h.monitoringService.FiringAlerts(),
	})
}

// handleListAlertRules handles GET /api/monitoring/rules
func (h *APIHandler) handleListAlertRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.monitoringService.GetAlertRules()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, rules)
}

// handleCreateAlertRule handles POST /api/monitoring/rules
func (h *APIHandler) handleCreateAlertRule(w http.ResponseWriter, r *http.Request) {
	var req api.CreateAlertRuleRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errs := req.Validate(); errs != nil {
		api.RespondValidationError(w, errs)
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	rule := database.AlertRule{
		Name:              req.Name,
		Condition:         database.AlertCondition(req.Condition),
		Threshold:         req.Threshold,
		TimeWindowMinutes: req.TimeWindowMinutes,
		Severity:          database.NormalizeSeverity(req.Severity),
		Channels:          req.Channels,
		Enabled:           enabled,
	}
	if err := h.monitoringService.AddAlertRule(&rule); err != nil {
		respondServiceError(w, err)
		return
	}

	h.auditService.Record(services.AuditEntry{
		UserID:       middleware.GetUserFromContext(r.Context()),
		Action:       "alert_rule.created",
		ResourceType: "alert_rule",
		ResourceID:   rule.Name,
		IPAddress:    r.RemoteAddr,
	})

	api.RespondJSON(w, http.StatusCreated, rule)
}

// handleDeleteAlertRule handles DELETE /api/monitoring/rules/{name}
func (h *APIHandler) handleDeleteAlertRule(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.monitoringService.RemoveAlertRule(name); err != nil {
		respondServiceError(w, err)
		return
	}

	h.auditService.Record(services.AuditEntry{
		UserID:       middleware.GetUserFromContext(r.Context()),
		Action:       "alert_rule.deleted",
		ResourceType: "alert_rule",
		ResourceID:   name,
		IPAddress:    r.RemoteAddr,
	})

	api.RespondNoContent(w)
}
