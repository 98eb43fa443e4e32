package handlers

import (
	"net/http"

	"github.com/autoremedy/autoremedy/internal/remediation"
	"github.com/autoremedy/autoremedy/internal/services"
)

// APIHandler handles API endpoints for the UI and operator tooling
type APIHandler struct {
	errorService      *services.ErrorService
	approvalService   *services.ApprovalService
	monitoringService *services.MonitoringService
	auditService      *services.AuditService
	agent             *remediation.Agent
	events            *EventHub
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(errorService *services.ErrorService, approvalService *services.ApprovalService, monitoringService *services.MonitoringService, auditService *services.AuditService, agent *remediation.Agent, events *EventHub) *APIHandler {
	return &APIHandler{
		errorService:      errorService,
		approvalService:   approvalService,
		monitoringService: monitoringService,
		auditService:      auditService,
		agent:             agent,
		events:            events,
	}
}

// SetupRoutes sets up all API routes
func (h *APIHandler) SetupRoutes(mux *http.ServeMux) {
	// Incidents
	mux.HandleFunc("GET /api/incidents", h.handleListIncidents)
	mux.HandleFunc("POST /api/incidents", h.handleCreateIncident)
	mux.HandleFunc("GET /api/incidents/{id}", h.handleGetIncident)
	mux.HandleFunc("PATCH /api/incidents/{id}/status", h.handleUpdateIncidentStatus)

	// Remediation attempts
	mux.HandleFunc("GET /api/incidents/{id}/attempts", h.handleListAttempts)
	mux.HandleFunc("POST /api/incidents/{id}/attempts", h.handleCreateAttempt)
	mux.HandleFunc("POST /api/incidents/{id}/remediate", h.handleRunRemediation)
	mux.HandleFunc("GET /api/attempts/{id}", h.handleGetAttempt)
	mux.HandleFunc("PATCH /api/attempts/{id}", h.handleUpdateAttempt)

	// Approvals
	mux.HandleFunc("GET /api/approvals", h.handleListApprovals)
	mux.HandleFunc("POST /api/approvals", h.handleRequestApproval)
	mux.HandleFunc("GET /api/approvals/{id}", h.handleGetApproval)
	mux.HandleFunc("POST /api/approvals/{id}/respond", h.handleApprovalResponse)

	// Monitoring
	mux.HandleFunc("GET /api/monitoring/health", h.handleSystemHealth)
	mux.HandleFunc("GET /api/monitoring/alerts", h.handleFiringAlerts)
	mux.HandleFunc("GET /api/monitoring/rules", h.handleListAlertRules)
	mux.HandleFunc("POST /api/monitoring/rules", h.handleCreateAlertRule)
	mux.HandleFunc("DELETE /api/monitoring/rules/{name}", h.handleDeleteAlertRule)

	// Audit trail
	mux.HandleFunc("GET /api/audit", h.handleListAuditLogs)
}

// publishEvent broadcasts an event to connected websocket clients if the
// hub is running
func (h *APIHandler) publishEvent(eventType string, payload interface{}) {
	if h.events != nil {
		h.events.Broadcast(eventType, payload)
	}
}
