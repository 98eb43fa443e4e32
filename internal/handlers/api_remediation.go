package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/autoremedy/autoremedy/internal/api"
	"github.com/autoremedy/autoremedy/internal/middleware"
	"github.com/autoremedy/autoremedy/internal/services"
)

// remediationRunTimeout bounds a full pipeline run: analysis, fix
// generation, test execution, and PR creation.
const remediationRunTimeout = 15 * time.Minute

// handleRunRemediation handles POST /api/incidents/{id}/remediate. The
// pipeline runs in the background; the response confirms it started.
func (h *APIHandler) handleRunRemediation(w http.ResponseWriter, r *http.Request) {
	if h.agent == nil {
		api.RespondError(w, http.StatusServiceUnavailable, "Remediation agent is not configured")
		return
	}

	incidentID := r.PathValue("id")
	incident, err := h.errorService.GetIncident(incidentID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if !incident.Status.IsActive() {
		api.RespondError(w, http.StatusConflict, "Incident is not active")
		return
	}

	user := middleware.GetUserFromContext(r.Context())
	h.auditService.Record(services.AuditEntry{
		UserID:       user,
		Action:       "remediation.triggered",
		ResourceType: "incident",
		ResourceID:   incidentID,
		IPAddress:    r.RemoteAddr,
	})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), remediationRunTimeout)
		defer cancel()

		attempt, err := h.agent.Run(ctx, incidentID)
		if err != nil {
			log.Printf("APIHandler: Remediation for incident %s failed: %v", incidentID, err)
		}
		if attempt != nil {
			h.publishEvent("attempt.updated", attempt)
		}
	}()

	api.RespondJSON(w, http.StatusAccepted, map[string]string{
		"incident_id": incidentID,
		"message":     "remediation started",
	})
}
