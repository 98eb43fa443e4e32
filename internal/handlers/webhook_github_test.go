package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"testing"

	"gorm.io/gorm"

	"github.com/autoremedy/autoremedy/internal/database"
	"github.com/autoremedy/autoremedy/internal/services"
	"github.com/autoremedy/autoremedy/internal/testhelpers"
)

func newGitHubWebhook(t *testing.T, secret string) (*http.ServeMux, *gorm.DB) {
	t.Helper()

	db := testhelpers.SetupTestDB(t)
	h := NewGitHubWebhookHandler(db, services.NewErrorService(db), secret)
	mux := http.NewServeMux()
	h.SetupRoutes(mux)
	return mux, db
}

func signGitHubBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestGitHubWebhook_RejectsBadSignature(t *testing.T) {
	mux, _ := newGitHubWebhook(t, "topsecret")

	body := []byte(`{"action":"completed"}`)
	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/webhook/github", bytes.NewReader(body)).
		WithHeader("X-GitHub-Event", "workflow_run").
		WithHeader("X-Hub-Signature-256", "sha256=deadbeef").
		Execute(mux).
		AssertStatus(http.StatusUnauthorized)
}

func TestGitHubWebhook_AcceptsValidSignature(t *testing.T) {
	mux, _ := newGitHubWebhook(t, "topsecret")

	body := []byte(`{}`)
	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/webhook/github", bytes.NewReader(body)).
		WithHeader("X-GitHub-Event", "ping").
		WithHeader("X-Hub-Signature-256", signGitHubBody("topsecret", body)).
		Execute(mux).
		AssertStatus(http.StatusOK)
}

func TestGitHubWebhook_WorkflowFailureCreatesIncident(t *testing.T) {
	mux, db := newGitHubWebhook(t, "")

	body := []byte(`{
		"action": "completed",
		"workflow_run": {
			"name": "ci",
			"conclusion": "failure",
			"html_url": "https://github.com/acme/orders/actions/runs/77",
			"head_branch": "main",
			"head_sha": "abc123"
		},
		"repository": {"name": "orders", "full_name": "acme/orders"}
	}`)

	var resp struct {
		IncidentID string `json:"incident_id"`
		Created    bool   `json:"created"`
	}
	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/webhook/github", bytes.NewReader(body)).
		WithHeader("X-GitHub-Event", "workflow_run").
		Execute(mux).
		AssertStatus(http.StatusOK).
		DecodeJSON(&resp)

	if !resp.Created {
		t.Error("expected a new incident for the failed workflow")
	}

	var incident database.ErrorIncident
	if err := db.First(&incident, "id = ?", resp.IncidentID).Error; err != nil {
		t.Fatalf("incident not persisted: %v", err)
	}
	if incident.ErrorType != "WorkflowFailure" {
		t.Errorf("expected WorkflowFailure, got %s", incident.ErrorType)
	}
	if incident.Environment != "ci" {
		t.Errorf("expected ci environment, got %s", incident.Environment)
	}
}

func TestGitHubWebhook_SuccessfulWorkflowIgnored(t *testing.T) {
	mux, db := newGitHubWebhook(t, "")

	body := []byte(`{
		"action": "completed",
		"workflow_run": {"name": "ci", "conclusion": "success"},
		"repository": {"name": "orders"}
	}`)
	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/webhook/github", bytes.NewReader(body)).
		WithHeader("X-GitHub-Event", "workflow_run").
		Execute(mux).
		AssertStatus(http.StatusOK)

	var count int64
	db.Model(&database.ErrorIncident{}).Count(&count)
	if count != 0 {
		t.Errorf("expected no incidents for a green run, got %d", count)
	}
}

func TestGitHubWebhook_ReviewRecordedAgainstAttempt(t *testing.T) {
	mux, db := newGitHubWebhook(t, "")

	incident := testhelpers.NewIncidentBuilder().Build()
	if err := db.Create(&incident).Error; err != nil {
		t.Fatalf("failed to seed incident: %v", err)
	}
	attempt := testhelpers.NewAttemptBuilder(incident.ID).
		WithStatus(database.AttemptStatusPRCreated).
		WithPRURL("https://github.com/acme/orders/pull/9").
		Build()
	if err := db.Create(&attempt).Error; err != nil {
		t.Fatalf("failed to seed attempt: %v", err)
	}

	body := []byte(`{
		"action": "submitted",
		"review": {"state": "approved", "body": "lgtm", "user": {"login": "reviewer1"}},
		"pull_request": {"number": 9, "html_url": "https://github.com/acme/orders/pull/9"}
	}`)
	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/webhook/github", bytes.NewReader(body)).
		WithHeader("X-GitHub-Event", "pull_request_review").
		Execute(mux).
		AssertStatus(http.StatusOK)

	var review database.PRReview
	if err := db.First(&review, "attempt_id = ?", attempt.ID).Error; err != nil {
		t.Fatalf("review not persisted: %v", err)
	}
	if review.ReviewStatus != "approved" || review.ReviewerLogin != "reviewer1" {
		t.Errorf("unexpected review %+v", review)
	}
}

func TestGitHubWebhook_ReviewOnUnknownPRIgnored(t *testing.T) {
	mux, db := newGitHubWebhook(t, "")

	body := []byte(`{
		"action": "submitted",
		"review": {"state": "approved", "user": {"login": "reviewer1"}},
		"pull_request": {"number": 5, "html_url": "https://github.com/acme/other/pull/5"}
	}`)
	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/webhook/github", bytes.NewReader(body)).
		WithHeader("X-GitHub-Event", "pull_request_review").
		Execute(mux).
		AssertStatus(http.StatusOK)

	var count int64
	db.Model(&database.PRReview{}).Count(&count)
	if count != 0 {
		t.Errorf("expected no stored reviews, got %d", count)
	}
}
