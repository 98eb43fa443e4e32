package database

import (
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, sok := value.(string); sok {
			bytes = []byte(s)
		} else {
			return errors.New("type assertion to []byte failed")
		}
	}
	return json.Unmarshal(bytes, j)
}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// StringList is a JSON-encoded list of strings (approver ids, channel names)
type StringList []string

// Scan implements the sql.Scanner interface
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, sok := value.(string); sok {
			bytes = []byte(s)
		} else {
			return errors.New("type assertion to []byte failed")
		}
	}
	return json.Unmarshal(bytes, l)
}

// Value implements the driver.Valuer interface
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Contains reports whether id is a member of the list
func (l StringList) Contains(id string) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

// Severity represents normalized incident severity levels
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IsValid reports whether the severity is a recognized value
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// NormalizeSeverity maps free-form severity strings to a recognized
// value. Unknown values fall back to medium.
func NormalizeSeverity(raw string) Severity {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if s := Severity(raw); s.IsValid() {
		return s
	}
	switch raw {
	case "fatal", "disaster", "emergency", "p1":
		return SeverityCritical
	case "error", "major", "severe", "p2":
		return SeverityHigh
	case "warning", "warn", "minor", "p3":
		return SeverityMedium
	case "info", "informational", "notice", "debug", "p4":
		return SeverityLow
	}
	return SeverityMedium
}

// GetSeverityEmoji returns an emoji for the severity, used in notifications
func GetSeverityEmoji(severity Severity) string {
	switch severity {
	case SeverityCritical:
		return ":red_circle:"
	case SeverityHigh:
		return ":large_orange_circle:"
	case SeverityMedium:
		return ":large_yellow_circle:"
	case SeverityLow:
		return ":large_blue_circle:"
	default:
		return ":white_circle:"
	}
}

// ErrorIncident represents a deduplicated record of one logical error condition
type ErrorIncident struct {
	ID              string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	ErrorType       string         `gorm:"size:100;index" json:"error_type"`
	ErrorMessage    string         `gorm:"type:text" json:"error_message"`
	StackTrace      string         `gorm:"type:text" json:"stack_trace,omitempty"`
	FilePath        string         `gorm:"size:500" json:"file_path,omitempty"`
	LineNumber      int            `json:"line_number,omitempty"`
	Language        string         `gorm:"size:50" json:"language,omitempty"` // python, javascript, typescript, go
	Severity        Severity       `gorm:"type:varchar(20);index" json:"severity"`
	ServiceName     string         `gorm:"size:100;index" json:"service_name"`
	Environment     string         `gorm:"size:50;index" json:"environment"` // development, staging, production
	Metadata        JSONB          `gorm:"type:jsonb" json:"metadata,omitempty"`
	OccurrenceCount int            `gorm:"not null;default:1" json:"occurrence_count"`
	Status          IncidentStatus `gorm:"type:varchar(50);not null;default:'open'" json:"status"`

	// DedupKey is the sha256 of (error_type, service_name, environment,
	// error_message). It is set only while the incident is open or
	// investigating and cleared on resolve/close, so the unique index
	// guarantees at most one open incident per fingerprint and a report
	// arriving after resolution opens a fresh incident.
	DedupKey *string `gorm:"type:varchar(64);uniqueIndex" json:"-"`

	LastOccurred time.Time  `gorm:"index" json:"last_occurred"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`

	// Relationships
	RemediationAttempts []RemediationAttempt `gorm:"foreignKey:IncidentID;constraint:OnDelete:CASCADE" json:"remediation_attempts,omitempty"`
}

// BeforeCreate assigns a UUID and initializes the last-occurred timestamp
func (i *ErrorIncident) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	if i.LastOccurred.IsZero() {
		i.LastOccurred = time.Now().UTC()
	}
	return nil
}

// IsResolved reports whether the incident has been resolved
func (i *ErrorIncident) IsResolved() bool {
	return i.Status == IncidentStatusResolved && i.ResolvedAt != nil
}

// Summary returns a short human-readable description of the incident
func (i *ErrorIncident) Summary() string {
	s := i.ErrorType
	if s == "" {
		s = "Unknown"
	}
	if i.FilePath != "" {
		s += " in " + i.FilePath
		if i.LineNumber > 0 {
			s += ":" + strconv.Itoa(i.LineNumber)
		}
	}
	return s
}

// ComputeDedupKey hashes the exact-match fingerprint tuple used for
// incident deduplication.
func ComputeDedupKey(errorType, serviceName, environment, errorMessage string) string {
	h := sha256.New()
	for _, part := range []string{errorType, serviceName, environment, errorMessage} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// RemediationAttempt represents one analyze/fix/test/PR cycle for an incident
type RemediationAttempt struct {
	ID              string        `gorm:"type:varchar(36);primaryKey" json:"id"`
	IncidentID      string        `gorm:"type:varchar(36);not null;index" json:"incident_id"`
	RemediationType string        `gorm:"size:100" json:"remediation_type"` // auto_fix, manual_fix, rollback
	Status          AttemptStatus `gorm:"type:varchar(50);not null;default:'started'" json:"status"`
	Description     string        `gorm:"type:text" json:"description,omitempty"`
	AnalysisResult  JSONB         `gorm:"type:jsonb" json:"analysis_result,omitempty"`
	FixCode         string        `gorm:"type:text" json:"fix_code,omitempty"`
	TestResults     JSONB         `gorm:"type:jsonb" json:"test_results,omitempty"`
	PRURL           string        `gorm:"size:500" json:"pr_url,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`

	// Relationships
	Incident  ErrorIncident `gorm:"foreignKey:IncidentID" json:"-"`
	PRReviews []PRReview    `gorm:"foreignKey:AttemptID;constraint:OnDelete:CASCADE" json:"pr_reviews,omitempty"`
}

// BeforeCreate assigns a UUID
func (a *RemediationAttempt) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// IsCompleted reports whether the attempt reached a terminal status
func (a *RemediationAttempt) IsCompleted() bool {
	return a.Status.IsTerminal() && a.CompletedAt != nil
}

// DurationMinutes returns the attempt duration, or -1 if still running
func (a *RemediationAttempt) DurationMinutes() int {
	if a.CompletedAt == nil {
		return -1
	}
	return int(a.CompletedAt.Sub(a.CreatedAt).Minutes())
}

// ApprovalType represents how an approval decision is made
type ApprovalType string

const (
	ApprovalTypeAutomatic ApprovalType = "automatic"
	ApprovalTypeManual    ApprovalType = "manual"
	ApprovalTypeEmergency ApprovalType = "emergency"
)

// IsValid reports whether the approval type is recognized
func (t ApprovalType) IsValid() bool {
	switch t {
	case ApprovalTypeAutomatic, ApprovalTypeManual, ApprovalTypeEmergency:
		return true
	}
	return false
}

// ApprovalStatus represents the state of an approval record.
// Transitions are one-way: pending -> approved | rejected | expired.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
	ApprovalStatusExpired  ApprovalStatus = "expired"
)

// ApprovalRecord is the decision ledger entry gating a remediation.
// Records are persisted so multiple API processes share one view.
type ApprovalRecord struct {
	ID              string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	IncidentID      string         `gorm:"type:varchar(36);not null;index" json:"incident_id"`
	RemediationData JSONB          `gorm:"type:jsonb" json:"remediation_data,omitempty"`
	ApprovalType    ApprovalType   `gorm:"type:varchar(20);not null" json:"approval_type"`
	Status          ApprovalStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Approvers       StringList     `gorm:"type:jsonb" json:"approvers"`
	RequireMultiple bool           `gorm:"default:false" json:"require_multiple"`
	ApprovalsGiven  StringList     `gorm:"type:jsonb" json:"approvals_given,omitempty"`
	ApprovedBy      string         `gorm:"size:100" json:"approved_by,omitempty"`
	RejectedBy      string         `gorm:"size:100" json:"rejected_by,omitempty"`
	Comment         string         `gorm:"type:text" json:"comment,omitempty"`
	NotifyChannel   string         `gorm:"size:100" json:"notify_channel,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	ApprovedAt      *time.Time     `json:"approved_at,omitempty"`
	RejectedAt      *time.Time     `json:"rejected_at,omitempty"`
	ExpiresAt       time.Time      `gorm:"index" json:"expires_at"`

	// Belongs to Incident
	Incident ErrorIncident `gorm:"foreignKey:IncidentID" json:"-"`
}

// BeforeCreate assigns a UUID
func (a *ApprovalRecord) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// IsPending reports whether the record can still be decided
func (a *ApprovalRecord) IsPending() bool {
	return a.Status == ApprovalStatusPending
}

// AuditLog records who did what to which resource
type AuditLog struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID       string    `gorm:"size:100;index" json:"user_id,omitempty"` // "system" for automated actions
	Action       string    `gorm:"size:100;not null;index" json:"action"`
	ResourceType string    `gorm:"size:50;index" json:"resource_type,omitempty"`
	ResourceID   string    `gorm:"size:36;index" json:"resource_id,omitempty"`
	Details      JSONB     `gorm:"type:jsonb" json:"details,omitempty"`
	IPAddress    string    `gorm:"size:45" json:"ip_address,omitempty"` // 45 chars for IPv6
	UserAgent    string    `gorm:"type:text" json:"user_agent,omitempty"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

// BeforeCreate assigns a UUID
func (l *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	return nil
}

// PRReview records a human review on an auto-fix pull request
type PRReview struct {
	ID            string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	AttemptID     string    `gorm:"type:varchar(36);not null;index" json:"attempt_id"`
	PRNumber      int       `json:"pr_number"`
	ReviewerLogin string    `gorm:"size:255" json:"reviewer_login"`
	ReviewStatus  string    `gorm:"size:50" json:"review_status"` // approved, changes_requested, commented
	Comments      string    `gorm:"type:text" json:"comments,omitempty"`
	CreatedAt     time.Time `json:"created_at"`

	// Belongs to RemediationAttempt
	Attempt RemediationAttempt `gorm:"foreignKey:AttemptID" json:"-"`
}

// BeforeCreate assigns a UUID
func (r *PRReview) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// AlertCondition selects the evaluator used by an alert rule
type AlertCondition string

const (
	AlertConditionCriticalErrors      AlertCondition = "critical_errors"
	AlertConditionErrorRate           AlertCondition = "error_rate"
	AlertConditionServiceErrors       AlertCondition = "service_errors"
	AlertConditionRemediationFailures AlertCondition = "remediation_failures"
)

// IsValid reports whether the condition is a recognized evaluator
func (c AlertCondition) IsValid() bool {
	switch c {
	case AlertConditionCriticalErrors, AlertConditionErrorRate,
		AlertConditionServiceErrors, AlertConditionRemediationFailures:
		return true
	}
	return false
}

// AlertRule is a named threshold condition evaluated periodically
// against incident volume. Rules are persisted; the firing set lives in
// the single monitor coordinator.
type AlertRule struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	Name              string         `gorm:"uniqueIndex;size:128;not null" json:"name"`
	Condition         AlertCondition `gorm:"type:varchar(50);not null" json:"condition"`
	Threshold         int            `gorm:"not null" json:"threshold"`
	TimeWindowMinutes int            `gorm:"not null" json:"time_window_minutes"`
	Severity          Severity       `gorm:"type:varchar(20);not null;default:'medium'" json:"severity"`
	Channels          StringList     `gorm:"type:jsonb" json:"channels"`
	Enabled           bool           `gorm:"not null" json:"enabled"`
	LastTriggered     *time.Time     `json:"last_triggered,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// TimeWindow returns the rule's evaluation window as a duration
func (r *AlertRule) TimeWindow() time.Duration {
	return time.Duration(r.TimeWindowMinutes) * time.Minute
}

// TableName overrides for explicit table naming
func (ErrorIncident) TableName() string {
	return "error_incidents"
}

func (RemediationAttempt) TableName() string {
	return "remediation_attempts"
}

func (ApprovalRecord) TableName() string {
	return "approval_records"
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

func (PRReview) TableName() string {
	return "pr_reviews"
}

func (AlertRule) TableName() string {
	return "alert_rules"
}
