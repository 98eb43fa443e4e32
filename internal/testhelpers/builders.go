// Package testhelpers provides data builders for testing
package testhelpers

import (
	"time"

	"github.com/autoremedy/autoremedy/internal/database"
)

// ========================================
// Incident Builder
// ========================================

// IncidentBuilder builds ErrorIncident instances for testing
type IncidentBuilder struct {
	incident database.ErrorIncident
}

// NewIncidentBuilder creates a new incident builder with defaults
func NewIncidentBuilder() *IncidentBuilder {
	return &IncidentBuilder{
		incident: database.ErrorIncident{
			ErrorType:       "NullPointerException",
			ErrorMessage:    "object reference not set",
			ServiceName:     "payments",
			Environment:     "production",
			Severity:        database.SeverityMedium,
			Status:          database.IncidentStatusOpen,
			OccurrenceCount: 1,
			LastOccurred:    time.Now(),
		},
	}
}

// WithID sets the incident ID
func (b *IncidentBuilder) WithID(id string) *IncidentBuilder {
	b.incident.ID = id
	return b
}

// WithErrorType sets the error type
func (b *IncidentBuilder) WithErrorType(errorType string) *IncidentBuilder {
	b.incident.ErrorType = errorType
	return b
}

// WithErrorMessage sets the error message
func (b *IncidentBuilder) WithErrorMessage(msg string) *IncidentBuilder {
	b.incident.ErrorMessage = msg
	return b
}

// WithService sets the service name
func (b *IncidentBuilder) WithService(service string) *IncidentBuilder {
	b.incident.ServiceName = service
	return b
}

// WithEnvironment sets the environment
func (b *IncidentBuilder) WithEnvironment(env string) *IncidentBuilder {
	b.incident.Environment = env
	return b
}

// WithSeverity sets the severity
func (b *IncidentBuilder) WithSeverity(severity database.Severity) *IncidentBuilder {
	b.incident.Severity = severity
	return b
}

// WithStatus sets the status
func (b *IncidentBuilder) WithStatus(status database.IncidentStatus) *IncidentBuilder {
	b.incident.Status = status
	return b
}

// WithLastOccurred sets the last occurrence time
func (b *IncidentBuilder) WithLastOccurred(at time.Time) *IncidentBuilder {
	b.incident.LastOccurred = at
	return b
}

// WithCreatedAt sets the creation time
func (b *IncidentBuilder) WithCreatedAt(at time.Time) *IncidentBuilder {
	b.incident.CreatedAt = at
	return b
}

// WithDedupKey sets the dedup key from the incident's fingerprint fields
func (b *IncidentBuilder) WithDedupKey() *IncidentBuilder {
	key := database.ComputeDedupKey(b.incident.ErrorType, b.incident.ServiceName, b.incident.Environment, b.incident.ErrorMessage)
	b.incident.DedupKey = &key
	return b
}

// Build returns the constructed incident
func (b *IncidentBuilder) Build() database.ErrorIncident {
	return b.incident
}

// ========================================
// Remediation Attempt Builder
// ========================================

// AttemptBuilder builds RemediationAttempt instances for testing
type AttemptBuilder struct {
	attempt database.RemediationAttempt
}

// NewAttemptBuilder creates a new attempt builder with defaults
func NewAttemptBuilder(incidentID string) *AttemptBuilder {
	return &AttemptBuilder{
		attempt: database.RemediationAttempt{
			IncidentID:      incidentID,
			RemediationType: "automated_fix",
			Status:          database.AttemptStatusStarted,
			Description:     "test remediation attempt",
		},
	}
}

// WithStatus sets the attempt status
func (b *AttemptBuilder) WithStatus(status database.AttemptStatus) *AttemptBuilder {
	b.attempt.Status = status
	return b
}

// WithType sets the remediation type
func (b *AttemptBuilder) WithType(remediationType string) *AttemptBuilder {
	b.attempt.RemediationType = remediationType
	return b
}

// WithPRURL sets the PR URL
func (b *AttemptBuilder) WithPRURL(url string) *AttemptBuilder {
	b.attempt.PRURL = url
	return b
}

// WithCreatedAt sets the creation time
func (b *AttemptBuilder) WithCreatedAt(at time.Time) *AttemptBuilder {
	b.attempt.CreatedAt = at
	return b
}

// Build returns the constructed attempt
func (b *AttemptBuilder) Build() database.RemediationAttempt {
	return b.attempt
}

// ========================================
// Approval Record Builder
// ========================================

// ApprovalBuilder builds ApprovalRecord instances for testing
type ApprovalBuilder struct {
	approval database.ApprovalRecord
}

// NewApprovalBuilder creates a new approval builder with defaults
func NewApprovalBuilder(incidentID string) *ApprovalBuilder {
	return &ApprovalBuilder{
		approval: database.ApprovalRecord{
			IncidentID:   incidentID,
			ApprovalType: database.ApprovalTypeManual,
			Status:       database.ApprovalStatusPending,
			Approvers:    database.StringList{"admin", "tech-lead"},
			ExpiresAt:    time.Now().Add(time.Hour),
		},
	}
}

// WithStatus sets the approval status
func (b *ApprovalBuilder) WithStatus(status database.ApprovalStatus) *ApprovalBuilder {
	b.approval.Status = status
	return b
}

// WithType sets the approval type
func (b *ApprovalBuilder) WithType(approvalType database.ApprovalType) *ApprovalBuilder {
	b.approval.ApprovalType = approvalType
	return b
}

// WithApprovers sets the eligible approvers
func (b *ApprovalBuilder) WithApprovers(approvers ...string) *ApprovalBuilder {
	b.approval.Approvers = approvers
	return b
}

// ExpiredAt sets an expiry time in the past
func (b *ApprovalBuilder) ExpiredAt(at time.Time) *ApprovalBuilder {
	b.approval.ExpiresAt = at
	return b
}

// Build returns the constructed approval record
func (b *ApprovalBuilder) Build() database.ApprovalRecord {
	return b.approval
}

// ========================================
// Alert Rule Builder
// ========================================

// AlertRuleBuilder builds AlertRule instances for testing
type AlertRuleBuilder struct {
	rule database.AlertRule
}

// NewAlertRuleBuilder creates a new alert rule builder with defaults
func NewAlertRuleBuilder() *AlertRuleBuilder {
	return &AlertRuleBuilder{
		rule: database.AlertRule{
			Name:              "test-rule",
			Condition:         database.AlertConditionCriticalErrors,
			Threshold:         3,
			TimeWindowMinutes: 5,
			Severity:          database.SeverityCritical,
			Channels:          database.StringList{"slack"},
			Enabled:           true,
		},
	}
}

// WithName sets the rule name
func (b *AlertRuleBuilder) WithName(name string) *AlertRuleBuilder {
	b.rule.Name = name
	return b
}

// WithCondition sets the condition
func (b *AlertRuleBuilder) WithCondition(condition database.AlertCondition) *AlertRuleBuilder {
	b.rule.Condition = condition
	return b
}

// WithThreshold sets the threshold
func (b *AlertRuleBuilder) WithThreshold(threshold int) *AlertRuleBuilder {
	b.rule.Threshold = threshold
	return b
}

// WithTimeWindow sets the time window in minutes
func (b *AlertRuleBuilder) WithTimeWindow(minutes int) *AlertRuleBuilder {
	b.rule.TimeWindowMinutes = minutes
	return b
}

// Disabled marks the rule as disabled
func (b *AlertRuleBuilder) Disabled() *AlertRuleBuilder {
	b.rule.Enabled = false
	return b
}

// Build returns the constructed alert rule
func (b *AlertRuleBuilder) Build() database.AlertRule {
	return b.rule
}
