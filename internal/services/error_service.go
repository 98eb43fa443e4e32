package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/autoremedy/autoremedy/internal/database"
)

// ErrorService manages error incidents and their remediation attempts
type ErrorService struct {
	db *gorm.DB
}

// NewErrorService creates a new error service
func NewErrorService(db *gorm.DB) *ErrorService {
	return &ErrorService{db: db}
}

// IncidentReport is a normalized error report from any ingestion source
type IncidentReport struct {
	ErrorType    string
	ErrorMessage string
	StackTrace   string
	FilePath     string
	LineNumber   int
	Language     string
	Severity     string
	ServiceName  string
	Environment  string
	Metadata     map[string]interface{}
}

// IncidentFilter holds optional filters for incident listing
type IncidentFilter struct {
	Status      string
	Severity    string
	ServiceName string
	Environment string
	Limit       int
	Offset      int
}

// CreateIncident records an error report, deduplicating against the open
// incident with the same fingerprint. Deduplication is a single upsert on
// the dedup_key unique index, so concurrent reports of the same error
// cannot create duplicate open incidents. Returns the incident and whether
// it was newly created.
func (s *ErrorService) CreateIncident(report IncidentReport) (*database.ErrorIncident, bool, error) {
	now := time.Now()
	dedupKey := database.ComputeDedupKey(report.ErrorType, report.ServiceName, report.Environment, report.ErrorMessage)

	incident := database.ErrorIncident{
		ErrorType:       report.ErrorType,
		ErrorMessage:    report.ErrorMessage,
		StackTrace:      report.StackTrace,
		FilePath:        report.FilePath,
		LineNumber:      report.LineNumber,
		Language:        report.Language,
		Severity:        database.NormalizeSeverity(report.Severity),
		ServiceName:     report.ServiceName,
		Environment:     report.Environment,
		Metadata:        database.JSONB(report.Metadata),
		OccurrenceCount: 1,
		Status:          database.IncidentStatusOpen,
		DedupKey:        &dedupKey,
		LastOccurred:    now,
	}

	// Resolved and closed incidents have their dedup key cleared, so the
	// conflict target only ever matches an active incident.
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "dedup_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"occurrence_count": gorm.Expr("occurrence_count + 1"),
			"last_occurred":    now,
			"updated_at":       now,
		}),
	}).Create(&incident).Error
	if err != nil {
		return nil, false, fmt.Errorf("failed to create incident: %w", err)
	}

	var stored database.ErrorIncident
	if err := s.db.Where("dedup_key = ?", dedupKey).First(&stored).Error; err != nil {
		return nil, false, fmt.Errorf("failed to load incident after upsert: %w", err)
	}

	created := stored.ID == incident.ID
	if created {
		log.Printf("ErrorService: Created incident %s (%s in %s/%s)", stored.ID, stored.ErrorType, stored.ServiceName, stored.Environment)
	} else {
		log.Printf("ErrorService: Deduplicated report into incident %s (occurrence %d)", stored.ID, stored.OccurrenceCount)
	}

	return &stored, created, nil
}

// GetIncident returns an incident with its remediation attempts
func (s *ErrorService) GetIncident(id string) (*database.ErrorIncident, error) {
	var incident database.ErrorIncident
	err := s.db.Preload("RemediationAttempts", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at DESC")
	}).First(&incident, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFoundError("incident", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load incident: %w", err)
	}
	return &incident, nil
}

// GetIncidents returns incidents matching the filter along with the total
// count before pagination, ordered by most recent occurrence
func (s *ErrorService) GetIncidents(filter IncidentFilter) ([]database.ErrorIncident, int64, error) {
	query := s.db.Model(&database.ErrorIncident{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if filter.ServiceName != "" {
		query = query.Where("service_name = ?", filter.ServiceName)
	}
	if filter.Environment != "" {
		query = query.Where("environment = ?", filter.Environment)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count incidents: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var incidents []database.ErrorIncident
	err := query.Preload("RemediationAttempts").
		Order("last_occurred DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&incidents).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list incidents: %w", err)
	}

	return incidents, total, nil
}

// UpdateIncidentStatus transitions an incident to a new status, enforcing
// the allowed transitions. Resolving or closing clears the dedup key so a
// recurrence of the same error opens a fresh incident.
func (s *ErrorService) UpdateIncidentStatus(id string, newStatus database.IncidentStatus) (*database.ErrorIncident, error) {
	if !newStatus.IsValid() {
		return nil, fmt.Errorf("unknown status %q: %w", newStatus, ErrValidation)
	}

	var incident database.ErrorIncident
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&incident, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundError("incident", id)
			}
			return fmt.Errorf("failed to load incident: %w", err)
		}

		if !incident.Status.CanTransitionTo(newStatus) {
			return TransitionError(string(incident.Status), string(newStatus))
		}

		now := time.Now()
		updates := map[string]interface{}{
			"status":     newStatus,
			"updated_at": now,
		}
		if newStatus == database.IncidentStatusResolved {
			updates["resolved_at"] = now
		}
		if newStatus.IsTerminal() || newStatus == database.IncidentStatusResolved {
			updates["dedup_key"] = nil
		}

		if err := tx.Model(&incident).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update incident status: %w", err)
		}

		incident.Status = newStatus
		if newStatus == database.IncidentStatusResolved {
			incident.ResolvedAt = &now
		}
		if _, ok := updates["dedup_key"]; ok {
			incident.DedupKey = nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("ErrorService: Incident %s transitioned to %s", id, newStatus)
	return &incident, nil
}

// CreateRemediationAttempt records a new remediation attempt for an incident
func (s *ErrorService) CreateRemediationAttempt(incidentID, remediationType, description string) (*database.RemediationAttempt, error) {
	var incident database.ErrorIncident
	if err := s.db.First(&incident, "id = ?", incidentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("incident", incidentID)
		}
		return nil, fmt.Errorf("failed to load incident: %w", err)
	}

	attempt := database.RemediationAttempt{
		IncidentID:      incidentID,
		RemediationType: remediationType,
		Status:          database.AttemptStatusStarted,
		Description:     description,
	}
	if err := s.db.Create(&attempt).Error; err != nil {
		return nil, fmt.Errorf("failed to create remediation attempt: %w", err)
	}

	log.Printf("ErrorService: Created remediation attempt %s for incident %s", attempt.ID, incidentID)
	return &attempt, nil
}

// AttemptUpdate holds partial updates for a remediation attempt. Nil fields
// are left unchanged.
type AttemptUpdate struct {
	Status         *database.AttemptStatus
	AnalysisResult map[string]interface{}
	FixCode        *string
	TestResults    map[string]interface{}
	PRURL          *string
}

// UpdateRemediationAttempt applies a partial update to an attempt, enforcing
// the attempt status transitions. Reaching a terminal status stamps
// CompletedAt.
func (s *ErrorService) UpdateRemediationAttempt(id string, update AttemptUpdate) (*database.RemediationAttempt, error) {
	var attempt database.RemediationAttempt
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&attempt, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundError("remediation attempt", id)
			}
			return fmt.Errorf("failed to load remediation attempt: %w", err)
		}

		updates := map[string]interface{}{"updated_at": time.Now()}

		if update.Status != nil {
			newStatus := *update.Status
			if !newStatus.IsValid() {
				return fmt.Errorf("unknown attempt status %q: %w", newStatus, ErrValidation)
			}
			if !attempt.Status.CanTransitionTo(newStatus) {
				return TransitionError(string(attempt.Status), string(newStatus))
			}
			updates["status"] = newStatus
			if newStatus.IsTerminal() {
				now := time.Now()
				updates["completed_at"] = now
				attempt.CompletedAt = &now
			}
			attempt.Status = newStatus
		}
		if update.AnalysisResult != nil {
			updates["analysis_result"] = database.JSONB(update.AnalysisResult)
			attempt.AnalysisResult = database.JSONB(update.AnalysisResult)
		}
		if update.FixCode != nil {
			updates["fix_code"] = *update.FixCode
			attempt.FixCode = *update.FixCode
		}
		if update.TestResults != nil {
			updates["test_results"] = database.JSONB(update.TestResults)
			attempt.TestResults = database.JSONB(update.TestResults)
		}
		if update.PRURL != nil {
			updates["pr_url"] = *update.PRURL
			attempt.PRURL = *update.PRURL
		}

		if err := tx.Model(&attempt).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update remediation attempt: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &attempt, nil
}

// GetRemediationAttempt returns a single attempt by ID
func (s *ErrorService) GetRemediationAttempt(id string) (*database.RemediationAttempt, error) {
	var attempt database.RemediationAttempt
	err := s.db.First(&attempt, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFoundError("remediation attempt", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load remediation attempt: %w", err)
	}
	return &attempt, nil
}

// GetAttemptsForIncident returns all attempts for an incident, newest first
func (s *ErrorService) GetAttemptsForIncident(incidentID string) ([]database.RemediationAttempt, error) {
	var attempts []database.RemediationAttempt
	err := s.db.Where("incident_id = ?", incidentID).
		Order("created_at DESC").
		Find(&attempts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list remediation attempts: %w", err)
	}
	return attempts, nil
}
