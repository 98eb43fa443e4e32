package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/autoremedy/autoremedy/internal/database"
)

// ApprovalNotifier delivers approval workflow notifications. Implementations
// must be safe for concurrent use.
type ApprovalNotifier interface {
	NotifyApprovalRequest(record *database.ApprovalRecord, incident *database.ErrorIncident) error
	NotifyApprovalResult(record *database.ApprovalRecord) error
	NotifyEmergencyOverride(record *database.ApprovalRecord, incident *database.ErrorIncident) error
}

// EmergencyApprover is the attribution recorded on emergency overrides
const EmergencyApprover = "emergency_system"

// ApprovalPolicy determines who may approve a remediation and how long the
// request stays open
type ApprovalPolicy struct {
	Approvers       []string
	Timeout         time.Duration
	RequireMultiple bool
}

// policyFor returns the approval policy for an incident. Production
// environments always require multiple approvers.
func policyFor(incident *database.ErrorIncident) ApprovalPolicy {
	var policy ApprovalPolicy
	switch incident.Severity {
	case database.SeverityCritical:
		policy = ApprovalPolicy{
			Approvers:       []string{"admin", "tech-lead", "security-team"},
			Timeout:         30 * time.Minute,
			RequireMultiple: true,
		}
	case database.SeverityHigh:
		policy = ApprovalPolicy{
			Approvers: []string{"admin", "tech-lead"},
			Timeout:   45 * time.Minute,
		}
	default:
		policy = ApprovalPolicy{
			Approvers: []string{"admin", "tech-lead"},
			Timeout:   60 * time.Minute,
		}
	}

	if incident.Environment == "production" {
		policy.RequireMultiple = true
	}
	return policy
}

// ApprovalService manages the approval workflow gating remediations
type ApprovalService struct {
	db       *gorm.DB
	notifier ApprovalNotifier
	audit    *AuditService
}

// NewApprovalService creates a new approval service. The notifier may be nil
// when notifications are not configured.
func NewApprovalService(db *gorm.DB, notifier ApprovalNotifier, audit *AuditService) *ApprovalService {
	return &ApprovalService{db: db, notifier: notifier, audit: audit}
}

// RequestApproval opens an approval record for a remediation. Automatic
// requests are approved immediately; emergency requests are approved
// immediately but flagged in the audit trail; manual requests stay pending
// until an eligible approver responds or the request expires.
func (s *ApprovalService) RequestApproval(incidentID string, remediationData map[string]interface{}, approvalType database.ApprovalType, requestedBy string) (*database.ApprovalRecord, error) {
	if !approvalType.IsValid() {
		return nil, fmt.Errorf("unknown approval type %q: %w", approvalType, ErrValidation)
	}

	var incident database.ErrorIncident
	if err := s.db.First(&incident, "id = ?", incidentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("incident", incidentID)
		}
		return nil, fmt.Errorf("failed to load incident: %w", err)
	}

	policy := policyFor(&incident)
	now := time.Now()

	record := database.ApprovalRecord{
		IncidentID:      incidentID,
		RemediationData: database.JSONB(remediationData),
		ApprovalType:    approvalType,
		Status:          database.ApprovalStatusPending,
		Approvers:       policy.Approvers,
		RequireMultiple: policy.RequireMultiple,
		ExpiresAt:       now.Add(policy.Timeout),
	}

	switch approvalType {
	case database.ApprovalTypeAutomatic:
		record.Status = database.ApprovalStatusApproved
		record.ApprovedBy = "system"
		record.ApprovedAt = &now
	case database.ApprovalTypeEmergency:
		record.Status = database.ApprovalStatusApproved
		record.ApprovedBy = EmergencyApprover
		record.ApprovedAt = &now
		record.Comment = "emergency override"
	}

	if err := s.db.Create(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to create approval record: %w", err)
	}

	s.audit.Record(AuditEntry{
		UserID:       requestedBy,
		Action:       "approval.requested",
		ResourceType: "approval",
		ResourceID:   record.ID,
		Details: map[string]interface{}{
			"incident_id":   incidentID,
			"approval_type": string(approvalType),
			"status":        string(record.Status),
		},
	})

	if s.notifier != nil {
		switch {
		case record.Status == database.ApprovalStatusPending:
			if err := s.notifier.NotifyApprovalRequest(&record, &incident); err != nil {
				log.Printf("ApprovalService: Failed to send approval request notification for %s: %v", record.ID, err)
			}
		case approvalType == database.ApprovalTypeEmergency:
			// Fire-and-forget: a notification failure never blocks the override
			if err := s.notifier.NotifyEmergencyOverride(&record, &incident); err != nil {
				log.Printf("ApprovalService: Failed to send emergency override notification for %s: %v", record.ID, err)
			}
		}
	}

	log.Printf("ApprovalService: Approval %s created for incident %s (type=%s status=%s)", record.ID, incidentID, approvalType, record.Status)
	return &record, nil
}

// ProcessApprovalResponse records a decision from an approver. Only users in
// the record's approver list may respond, and only while the record is
// pending and unexpired. When multiple approvals are required, the record
// stays pending until a second distinct approver agrees.
func (s *ApprovalService) ProcessApprovalResponse(approvalID, user string, approve bool, comment string) (*database.ApprovalRecord, error) {
	var record database.ApprovalRecord
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&record, "id = ?", approvalID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundError("approval", approvalID)
			}
			return fmt.Errorf("failed to load approval: %w", err)
		}

		if !record.IsPending() {
			return fmt.Errorf("approval %s already %s: %w", approvalID, record.Status, ErrConflict)
		}

		now := time.Now()
		if now.After(record.ExpiresAt) {
			return errResponsePastDeadline
		}

		if !record.Approvers.Contains(user) {
			return fmt.Errorf("user %s is not an eligible approver: %w", user, ErrUnauthorized)
		}

		if !approve {
			record.Status = database.ApprovalStatusRejected
			record.RejectedBy = user
			record.RejectedAt = &now
			record.Comment = comment
			return tx.Model(&record).Updates(map[string]interface{}{
				"status":      record.Status,
				"rejected_by": user,
				"rejected_at": now,
				"comment":     comment,
			}).Error
		}

		if record.ApprovalsGiven.Contains(user) {
			return fmt.Errorf("user %s already approved: %w", user, ErrConflict)
		}
		record.ApprovalsGiven = append(record.ApprovalsGiven, user)

		needed := 1
		if record.RequireMultiple {
			needed = 2
		}

		if len(record.ApprovalsGiven) >= needed {
			record.Status = database.ApprovalStatusApproved
			record.ApprovedBy = user
			record.ApprovedAt = &now
			record.Comment = comment
			return tx.Model(&record).Updates(map[string]interface{}{
				"status":          record.Status,
				"approvals_given": record.ApprovalsGiven,
				"approved_by":     user,
				"approved_at":     now,
				"comment":         comment,
			}).Error
		}

		// First of two required approvals
		return tx.Model(&record).Updates(map[string]interface{}{
			"approvals_given": record.ApprovalsGiven,
		}).Error
	})
	if errors.Is(err, errResponsePastDeadline) {
		// The expiry write must survive the rejection of the response, so
		// it runs in its own transaction after the decision one rolls back
		if uerr := s.db.Model(&record).Update("status", database.ApprovalStatusExpired).Error; uerr != nil {
			log.Printf("ApprovalService: Failed to expire approval %s: %v", record.ID, uerr)
		} else {
			record.Status = database.ApprovalStatusExpired
		}
		return nil, fmt.Errorf("approval %s has expired: %w", approvalID, ErrConflict)
	}
	if err != nil {
		return nil, err
	}

	s.audit.Record(AuditEntry{
		UserID:       user,
		Action:       auditActionForResponse(approve),
		ResourceType: "approval",
		ResourceID:   record.ID,
		Details: map[string]interface{}{
			"incident_id": record.IncidentID,
			"status":      string(record.Status),
			"comment":     comment,
		},
	})

	if !record.IsPending() && s.notifier != nil {
		if err := s.notifier.NotifyApprovalResult(&record); err != nil {
			log.Printf("ApprovalService: Failed to send approval result notification for %s: %v", record.ID, err)
		}
	}

	log.Printf("ApprovalService: Approval %s responded by %s (approve=%v status=%s)", record.ID, user, approve, record.Status)
	return &record, nil
}

// errResponsePastDeadline signals a response to an already-overdue record;
// it forces the decision transaction to roll back while the caller persists
// the expiry separately.
var errResponsePastDeadline = errors.New("approval response past deadline")

func auditActionForResponse(approve bool) string {
	if approve {
		return "approval.approved"
	}
	return "approval.rejected"
}

// GetApproval returns an approval record by ID
func (s *ApprovalService) GetApproval(id string) (*database.ApprovalRecord, error) {
	var record database.ApprovalRecord
	err := s.db.First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFoundError("approval", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load approval: %w", err)
	}
	return &record, nil
}

// ListApprovals returns approval records, optionally filtered by status,
// newest first
func (s *ApprovalService) ListApprovals(status database.ApprovalStatus, limit, offset int) ([]database.ApprovalRecord, int64, error) {
	query := s.db.Model(&database.ApprovalRecord{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count approvals: %w", err)
	}

	if limit <= 0 {
		limit = 50
	}

	var records []database.ApprovalRecord
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&records).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list approvals: %w", err)
	}
	return records, total, nil
}

// CheckExpiredApprovals marks pending approvals past their deadline as
// expired and returns how many were swept
func (s *ApprovalService) CheckExpiredApprovals() (int, error) {
	var expired []database.ApprovalRecord
	err := s.db.Where("status = ? AND expires_at < ?", database.ApprovalStatusPending, time.Now()).
		Find(&expired).Error
	if err != nil {
		return 0, fmt.Errorf("failed to find expired approvals: %w", err)
	}

	for i := range expired {
		record := &expired[i]
		if err := s.db.Model(record).Update("status", database.ApprovalStatusExpired).Error; err != nil {
			log.Printf("ApprovalService: Failed to expire approval %s: %v", record.ID, err)
			continue
		}
		record.Status = database.ApprovalStatusExpired

		s.audit.Record(AuditEntry{
			UserID:       "system",
			Action:       "approval.expired",
			ResourceType: "approval",
			ResourceID:   record.ID,
			Details:      map[string]interface{}{"incident_id": record.IncidentID},
		})

		if s.notifier != nil {
			if err := s.notifier.NotifyApprovalResult(record); err != nil {
				log.Printf("ApprovalService: Failed to send expiry notification for %s: %v", record.ID, err)
			}
		}
	}

	if len(expired) > 0 {
		log.Printf("ApprovalService: Expired %d stale approval(s)", len(expired))
	}
	return len(expired), nil
}
