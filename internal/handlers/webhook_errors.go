package handlers

import (
	"log"
	"net/http"

	"github.com/autoremedy/autoremedy/internal/api"
	"github.com/autoremedy/autoremedy/internal/notify"
	"github.com/autoremedy/autoremedy/internal/services"
)

// ErrorWebhookHandler ingests error reports from instrumented services
type ErrorWebhookHandler struct {
	errorService *services.ErrorService
	notifier     *notify.SlackNotifier
	events       *EventHub
}

// NewErrorWebhookHandler creates a new error report webhook handler. The
// notifier and event hub may be nil.
func NewErrorWebhookHandler(errorService *services.ErrorService, notifier *notify.SlackNotifier, events *EventHub) *ErrorWebhookHandler {
	return &ErrorWebhookHandler{
		errorService: errorService,
		notifier:     notifier,
		events:       events,
	}
}

// SetupRoutes registers the error ingestion webhook
func (h *ErrorWebhookHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhook/errors", h.HandleErrorReport)
}

// HandleErrorReport handles POST /webhook/errors. Reports deduplicate
// into existing open incidents; a new incident triggers a notification.
func (h *ErrorWebhookHandler) HandleErrorReport(w http.ResponseWriter, r *http.Request) {
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

	if created {
		if h.notifier != nil {
			if err := h.notifier.NotifyIncident(incident); err != nil {
				log.Printf("ErrorWebhookHandler: Failed to notify incident %s: %v", incident.ID, err)
			}
		}
		if h.events != nil {
			h.events.Broadcast("incident.created", incident)
		}
		api.RespondJSON(w, http.StatusCreated, map[string]interface{}{
			"incident_id": incident.ID,
			"created":     true,
		})
		return
	}

	if h.events != nil {
		h.events.Broadcast("incident.recurred", incident)
	}
	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"incident_id":      incident.ID,
		"created":          false,
		"occurrence_count": incident.OccurrenceCount,
	})
}
