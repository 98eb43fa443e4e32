package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/autoremedy/autoremedy/internal/api"
	"github.com/autoremedy/autoremedy/internal/database"
	"github.com/autoremedy/autoremedy/internal/services"
)

// GitHubWebhookHandler ingests GitHub events: CI failures become incidents
// and PR reviews are recorded against their remediation attempts
type GitHubWebhookHandler struct {
	db            *gorm.DB
	errorService  *services.ErrorService
	webhookSecret string
}

// NewGitHubWebhookHandler creates a new GitHub webhook handler
func NewGitHubWebhookHandler(db *gorm.DB, errorService *services.ErrorService, webhookSecret string) *GitHubWebhookHandler {
	return &GitHubWebhookHandler{
		db:            db,
		errorService:  errorService,
		webhookSecret: webhookSecret,
	}
}

// SetupRoutes registers the GitHub webhook endpoint
func (h *GitHubWebhookHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhook/github", h.HandleWebhook)
}

// workflowRunEvent is the subset of the workflow_run payload we consume
type workflowRunEvent struct {
	Action      string `json:"action"`
	WorkflowRun struct {
		Name       string `json:"name"`
		Conclusion string `json:"conclusion"`
		HTMLURL    string `json:"html_url"`
		HeadBranch string `json:"head_branch"`
		HeadSHA    string `json:"head_sha"`
	} `json:"workflow_run"`
	Repository struct {
		Name     string `json:"name"`
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// pullRequestReviewEvent is the subset of the pull_request_review payload
// we consume
type pullRequestReviewEvent struct {
	Action string `json:"action"`
	Review struct {
		State string `json:"state"`
		Body  string `json:"body"`
		User  struct {
			Login string `json:"login"`
		} `json:"user"`
	} `json:"review"`
	PullRequest struct {
		Number  int    `json:"number"`
		HTMLURL string `json:"html_url"`
	} `json:"pull_request"`
}

// HandleWebhook handles POST /webhook/github
func (h *GitHubWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := api.ReadBody(r)
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	if h.webhookSecret != "" {
		if !verifyGitHubSignature(h.webhookSecret, r.Header.Get("X-Hub-Signature-256"), body) {
			log.Printf("GitHubWebhookHandler: Invalid signature from %s", r.RemoteAddr)
			api.RespondError(w, http.StatusUnauthorized, "Invalid signature")
			return
		}
	}

	event := r.Header.Get("X-GitHub-Event")
	switch event {
	case "workflow_run":
		h.handleWorkflowRun(w, body)
	case "pull_request_review":
		h.handlePullRequestReview(w, body)
	case "ping":
		api.RespondJSON(w, http.StatusOK, map[string]string{"message": "pong"})
	default:
		// Unsubscribed events are acknowledged, not errors
		api.RespondJSON(w, http.StatusOK, map[string]string{"message": "ignored"})
	}
}

// handleWorkflowRun creates an incident for failed CI runs
func (h *GitHubWebhookHandler) handleWorkflowRun(w http.ResponseWriter, body []byte) {
	var event workflowRunEvent
	if err := json.Unmarshal(body, &event); err != nil {
		api.RespondError(w, http.StatusBadRequest, "Invalid workflow_run payload")
		return
	}

	if event.Action != "completed" || event.WorkflowRun.Conclusion != "failure" {
		api.RespondJSON(w, http.StatusOK, map[string]string{"message": "ignored"})
		return
	}

	incident, created, err := h.errorService.CreateIncident(services.IncidentReport{
		ErrorType:    "WorkflowFailure",
		ErrorMessage: fmt.Sprintf("workflow %s failed on %s", event.WorkflowRun.Name, event.WorkflowRun.HeadBranch),
		Severity:     "high",
		ServiceName:  event.Repository.Name,
		Environment:  "ci",
		Metadata: map[string]interface{}{
			"workflow": event.WorkflowRun.Name,
			"run_url":  event.WorkflowRun.HTMLURL,
			"branch":   event.WorkflowRun.HeadBranch,
			"sha":      event.WorkflowRun.HeadSHA,
			"repo":     event.Repository.FullName,
		},
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"incident_id": incident.ID,
		"created":     created,
	})
}

// handlePullRequestReview records a review against the remediation attempt
// that opened the PR
func (h *GitHubWebhookHandler) handlePullRequestReview(w http.ResponseWriter, body []byte) {
	var event pullRequestReviewEvent
	if err := json.Unmarshal(body, &event); err != nil {
		api.RespondError(w, http.StatusBadRequest, "Invalid pull_request_review payload")
		return
	}

	if event.Action != "submitted" {
		api.RespondJSON(w, http.StatusOK, map[string]string{"message": "ignored"})
		return
	}

	var attempt database.RemediationAttempt
	err := h.db.Where("pr_url = ?", event.PullRequest.HTMLURL).First(&attempt).Error
	if err != nil {
		// Reviews on PRs we didn't open are not ours to track
		api.RespondJSON(w, http.StatusOK, map[string]string{"message": "no matching attempt"})
		return
	}

	review := database.PRReview{
		AttemptID:     attempt.ID,
		PRNumber:      event.PullRequest.Number,
		ReviewerLogin: event.Review.User.Login,
		ReviewStatus:  event.Review.State,
		Comments:      event.Review.Body,
	}
	if err := h.db.Create(&review).Error; err != nil {
		log.Printf("GitHubWebhookHandler: Failed to store review for attempt %s: %v", attempt.ID, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to store review")
		return
	}

	log.Printf("GitHubWebhookHandler: Recorded %s review by %s on attempt %s", review.ReviewStatus, review.ReviewerLogin, attempt.ID)
	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"review_id":  review.ID,
		"attempt_id": attempt.ID,
	})
}

// verifyGitHubSignature checks the X-Hub-Signature-256 HMAC
func verifyGitHubSignature(secret, header string, body []byte) bool {
	if !strings.HasPrefix(header, "sha256=") {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.TrimPrefix(header, "sha256=")))
}
