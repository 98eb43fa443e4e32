package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"

	"github.com/slack-go/slack"

	"github.com/autoremedy/autoremedy/internal/api"
	"github.com/autoremedy/autoremedy/internal/services"
)

// SlackWebhookHandler handles Slack event callbacks and interactive
// approve/reject actions
type SlackWebhookHandler struct {
	approvalService *services.ApprovalService
	signingSecret   string
}

// NewSlackWebhookHandler creates a new Slack webhook handler
func NewSlackWebhookHandler(approvalService *services.ApprovalService, signingSecret string) *SlackWebhookHandler {
	return &SlackWebhookHandler{
		approvalService: approvalService,
		signingSecret:   signingSecret,
	}
}

// SetupRoutes registers the Slack webhook endpoints
func (h *SlackWebhookHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhook/slack/events", h.HandleEvent)
	mux.HandleFunc("POST /webhook/slack/interactive", h.HandleInteractive)
}

// HandleEvent handles POST /webhook/slack/events (URL verification and
// event callbacks)
func (h *SlackWebhookHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readVerifiedBody(w, r)
	if !ok {
		return
	}

	var envelope struct {
		Type      string `json:"type"`
		Challenge string `json:"challenge"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		api.RespondError(w, http.StatusBadRequest, "Invalid event payload")
		return
	}

	switch envelope.Type {
	case "url_verification":
		api.RespondJSON(w, http.StatusOK, map[string]string{"challenge": envelope.Challenge})
	default:
		w.WriteHeader(http.StatusOK)
	}
}

// interactivePayload is the subset of Slack's block_actions payload we use
type interactivePayload struct {
	Type string `json:"type"`
	User struct {
		Username string `json:"username"`
		Name     string `json:"name"`
	} `json:"user"`
	Actions []struct {
		ActionID string `json:"action_id"`
		Value    string `json:"value"`
	} `json:"actions"`
}

// HandleInteractive handles POST /webhook/slack/interactive. Approve and
// reject buttons carry the approval record ID as their value.
func (h *SlackWebhookHandler) HandleInteractive(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readVerifiedBody(w, r)
	if !ok {
		return
	}

	// Interactive payloads arrive form-encoded with a single payload field
	values, err := url.ParseQuery(string(body))
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, "Invalid form body")
		return
	}

	var payload interactivePayload
	if err := json.Unmarshal([]byte(values.Get("payload")), &payload); err != nil {
		api.RespondError(w, http.StatusBadRequest, "Invalid interactive payload")
		return
	}

	if payload.Type != "block_actions" || len(payload.Actions) == 0 {
		w.WriteHeader(http.StatusOK)
		return
	}

	action := payload.Actions[0]
	user := payload.User.Username
	if user == "" {
		user = payload.User.Name
	}

	var approve bool
	switch action.ActionID {
	case "approve_remediation":
		approve = true
	case "reject_remediation":
		approve = false
	default:
		w.WriteHeader(http.StatusOK)
		return
	}

	record, err := h.approvalService.ProcessApprovalResponse(action.Value, user, approve, "via Slack")
	if err != nil {
		log.Printf("SlackWebhookHandler: Approval response from %s failed: %v", user, err)
		// Slack expects 200 even on rejection; surface the reason as text
		api.RespondJSON(w, http.StatusOK, map[string]string{"text": err.Error()})
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]string{
		"text": "Recorded " + string(record.Status) + " for approval " + record.ID,
	})
}

// readVerifiedBody reads the request body, verifying the Slack signature
// when a signing secret is configured
func (h *SlackWebhookHandler) readVerifiedBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := api.ReadBody(r)
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, "Failed to read request body")
		return nil, false
	}

	if h.signingSecret == "" {
		return body, true
	}

	verifier, err := slack.NewSecretsVerifier(r.Header, h.signingSecret)
	if err != nil {
		api.RespondError(w, http.StatusUnauthorized, "Missing signature headers")
		return nil, false
	}
	if _, err := verifier.Write(body); err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Signature verification failed")
		return nil, false
	}
	if err := verifier.Ensure(); err != nil {
		log.Printf("SlackWebhookHandler: Invalid signature from %s", r.RemoteAddr)
		api.RespondError(w, http.StatusUnauthorized, "Invalid signature")
		return nil, false
	}

	return body, true
}
