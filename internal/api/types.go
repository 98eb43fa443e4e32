package api

import (
	"github.com/autoremedy/autoremedy/internal/database"
)

// PaginationMeta describes the page window of a paginated response.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// PaginatedResponse wraps a data page with its pagination metadata.
type PaginatedResponse struct {
	Data       interface{}    `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}

// CreateIncidentRequest is the body for POST /api/incidents and
// POST /webhook/errors.
type CreateIncidentRequest struct {
	ErrorType    string                 `json:"error_type"`
	ErrorMessage string                 `json:"error_message"`
	StackTrace   string                 `json:"stack_trace,omitempty"`
	FilePath     string                 `json:"file_path,omitempty"`
	LineNumber   int                    `json:"line_number,omitempty"`
	Language     string                 `json:"language,omitempty"`
	Severity     string                 `json:"severity"`
	ServiceName  string                 `json:"service_name"`
	Environment  string                 `json:"environment"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// Validate checks required fields and returns field-level errors.
func (r *CreateIncidentRequest) Validate() map[string]string {
	errs := make(map[string]string)
	if r.ErrorType == "" {
		errs["error_type"] = "error_type is required"
	}
	if r.ErrorMessage == "" {
		errs["error_message"] = "error_message is required"
	}
	if r.ServiceName == "" {
		errs["service_name"] = "service_name is required"
	}
	if r.Environment == "" {
		errs["environment"] = "environment is required"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// UpdateIncidentStatusRequest is the body for PATCH /api/incidents/{id}/status.
type UpdateIncidentStatusRequest struct {
	Status string `json:"status"`
}

// CreateAttemptRequest is the body for POST /api/incidents/{id}/attempts.
type CreateAttemptRequest struct {
	RemediationType string `json:"remediation_type"`
	Description     string `json:"description,omitempty"`
}

// UpdateAttemptRequest is the body for PATCH /api/attempts/{id}.
// Nil fields are left unchanged.
type UpdateAttemptRequest struct {
	Status         *string                `json:"status,omitempty"`
	AnalysisResult map[string]interface{} `json:"analysis_result,omitempty"`
	FixCode        *string                `json:"fix_code,omitempty"`
	TestResults    map[string]interface{} `json:"test_results,omitempty"`
	PRURL          *string                `json:"pr_url,omitempty"`
}

// RequestApprovalRequest is the body for POST /api/approvals.
type RequestApprovalRequest struct {
	IncidentID       string                 `json:"incident_id"`
	RemediationData  map[string]interface{} `json:"remediation_data,omitempty"`
	ApprovalType     string                 `json:"approval_type"`
	Approvers        []string               `json:"approvers,omitempty"`
	AutoApproveAfter int                    `json:"auto_approve_after,omitempty"` // minutes
	NotifyChannel    string                 `json:"notify_channel,omitempty"`
}

// ApprovalResponseRequest is the body for POST /api/approvals/{id}/respond.
type ApprovalResponseRequest struct {
	ApproverID string `json:"approver_id"`
	Action     string `json:"action"` // approve or reject
	Comment    string `json:"comment,omitempty"`
}

// CreateAlertRuleRequest is the body for POST /api/monitoring/rules.
type CreateAlertRuleRequest struct {
	Name              string   `json:"name"`
	Condition         string   `json:"condition"`
	Threshold         int      `json:"threshold"`
	TimeWindowMinutes int      `json:"time_window_minutes"`
	Severity          string   `json:"severity,omitempty"`
	Channels          []string `json:"channels,omitempty"`
	Enabled           *bool    `json:"enabled,omitempty"`
}

// Validate checks the rule definition and returns field-level errors.
func (r *CreateAlertRuleRequest) Validate() map[string]string {
	errs := make(map[string]string)
	if r.Name == "" {
		errs["name"] = "name is required"
	}
	if !database.AlertCondition(r.Condition).IsValid() {
		errs["condition"] = "condition must be one of critical_errors, error_rate, service_errors, remediation_failures"
	}
	if r.Threshold <= 0 {
		errs["threshold"] = "threshold must be a positive integer"
	}
	if r.TimeWindowMinutes <= 0 {
		errs["time_window_minutes"] = "time_window_minutes must be a positive integer"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// IncidentListItem is the compact incident representation used by list
// endpoints. Large fields like the stack trace are omitted to keep
// response sizes down.
type IncidentListItem struct {
	ID              string                  `json:"id"`
	ErrorType       string                  `json:"error_type"`
	ErrorMessage    string                  `json:"error_message"`
	Severity        database.Severity       `json:"severity"`
	ServiceName     string                  `json:"service_name"`
	Environment     string                  `json:"environment"`
	OccurrenceCount int                     `json:"occurrence_count"`
	Status          database.IncidentStatus `json:"status"`
	AttemptCount    int                     `json:"attempt_count"`
	LastOccurred    string                  `json:"last_occurred"`
	CreatedAt       string                  `json:"created_at"`
	ResolvedAt      string                  `json:"resolved_at,omitempty"`
}
