package services

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/autoremedy/autoremedy/internal/database"
)

// AuditService records and queries the audit trail
type AuditService struct {
	db *gorm.DB
}

// NewAuditService creates a new audit service
func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// AuditEntry describes an action to record
type AuditEntry struct {
	UserID       string
	Action       string
	ResourceType string
	ResourceID   string
	Details      map[string]interface{}
	IPAddress    string
	UserAgent    string
}

// Record writes an audit log entry. Failures are logged but never block the
// action being audited; callers treat this as best-effort.
func (s *AuditService) Record(entry AuditEntry) {
	logEntry := database.AuditLog{
		UserID:       entry.UserID,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Details:      database.JSONB(entry.Details),
		IPAddress:    entry.IPAddress,
		UserAgent:    entry.UserAgent,
	}
	if err := s.db.Create(&logEntry).Error; err != nil {
		log.Printf("AuditService: Failed to record %s on %s/%s: %v", entry.Action, entry.ResourceType, entry.ResourceID, err)
	}
}

// AuditFilter holds optional filters for audit log listing
type AuditFilter struct {
	UserID       string
	Action       string
	ResourceType string
	ResourceID   string
	Limit        int
	Offset       int
}

// List returns audit log entries matching the filter, newest first, along
// with the total count before pagination
func (s *AuditService) List(filter AuditFilter) ([]database.AuditLog, int64, error) {
	query := s.db.Model(&database.AuditLog{})

	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.ResourceType != "" {
		query = query.Where("resource_type = ?", filter.ResourceType)
	}
	if filter.ResourceID != "" {
		query = query.Where("resource_id = ?", filter.ResourceID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var entries []database.AuditLog
	err := query.Order("created_at DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&entries).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}

	return entries, total, nil
}
