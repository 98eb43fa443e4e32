package services

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/autoremedy/autoremedy/internal/database"
)

// AlertNotifier delivers alert notifications on the transitions into and
// out of the firing state
type AlertNotifier interface {
	NotifyAlert(rule *database.AlertRule, message string) error
	NotifyAlertResolved(rule *database.AlertRule, message string) error
}

// MonitoringService evaluates alert rules against the incident stream and
// tracks which alerts are currently firing. Rules are persisted; the firing
// set is process-local state owned by the single monitor loop.
type MonitoringService struct {
	db       *gorm.DB
	notifier AlertNotifier

	mu     sync.Mutex
	firing map[string]time.Time // rule name -> since
}

// NewMonitoringService creates a new monitoring service. The notifier may be
// nil when notifications are not configured.
func NewMonitoringService(db *gorm.DB, notifier AlertNotifier) *MonitoringService {
	return &MonitoringService{
		db:       db,
		notifier: notifier,
		firing:   make(map[string]time.Time),
	}
}

// Start runs the evaluation loop until the stop channel is closed
func (s *MonitoringService) Start(interval time.Duration, stop chan struct{}) {
	log.Printf("MonitoringService: Starting alert evaluation loop (interval: %v)", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Evaluate once immediately on startup
	s.EvaluateRules()

	for {
		select {
		case <-ticker.C:
			s.EvaluateRules()
		case <-stop:
			log.Printf("MonitoringService: Stopping alert evaluation loop")
			return
		}
	}
}

// EvaluateRules runs one evaluation pass over all enabled rules
func (s *MonitoringService) EvaluateRules() {
	var rules []database.AlertRule
	if err := s.db.Where("enabled = ?", true).Find(&rules).Error; err != nil {
		log.Printf("MonitoringService: Failed to load alert rules: %v", err)
		return
	}

	for i := range rules {
		rule := &rules[i]
		count, detail, err := s.evaluateCondition(rule)
		if err != nil {
			log.Printf("MonitoringService: Failed to evaluate rule %s: %v", rule.Name, err)
			continue
		}

		if count >= int64(rule.Threshold) {
			s.fire(rule, count, detail)
		} else {
			s.clear(rule)
		}
	}
}

// evaluateCondition returns the observed count for a rule's condition over
// its time window, plus a human-readable detail for notifications
func (s *MonitoringService) evaluateCondition(rule *database.AlertRule) (int64, string, error) {
	since := time.Now().Add(-rule.TimeWindow())

	switch rule.Condition {
	case database.AlertConditionCriticalErrors:
		var count int64
		err := s.db.Model(&database.ErrorIncident{}).
			Where("severity = ? AND last_occurred >= ?", database.SeverityCritical, since).
			Count(&count).Error
		return count, fmt.Sprintf("%d critical error(s) in the last %v", count, rule.TimeWindow()), err

	case database.AlertConditionErrorRate:
		var count int64
		err := s.db.Model(&database.ErrorIncident{}).
			Where("last_occurred >= ?", since).
			Count(&count).Error
		return count, fmt.Sprintf("%d error(s) in the last %v", count, rule.TimeWindow()), err

	case database.AlertConditionServiceErrors:
		// Worst single service over the window
		type serviceCount struct {
			ServiceName string
			Count       int64
		}
		var rows []serviceCount
		err := s.db.Model(&database.ErrorIncident{}).
			Select("service_name, COUNT(*) as count").
			Where("last_occurred >= ?", since).
			Group("service_name").
			Order("count DESC").
			Limit(1).
			Scan(&rows).Error
		if err != nil || len(rows) == 0 {
			return 0, "", err
		}
		return rows[0].Count, fmt.Sprintf("service %s had %d error(s) in the last %v", rows[0].ServiceName, rows[0].Count, rule.TimeWindow()), nil

	case database.AlertConditionRemediationFailures:
		var count int64
		err := s.db.Model(&database.RemediationAttempt{}).
			Where("status = ? AND updated_at >= ?", database.AttemptStatusFailed, since).
			Count(&count).Error
		return count, fmt.Sprintf("%d failed remediation(s) in the last %v", count, rule.TimeWindow()), err

	default:
		return 0, "", fmt.Errorf("unknown alert condition %q", rule.Condition)
	}
}

// fire marks a rule as firing and notifies on the transition into firing
func (s *MonitoringService) fire(rule *database.AlertRule, count int64, detail string) {
	s.mu.Lock()
	_, alreadyFiring := s.firing[rule.Name]
	if !alreadyFiring {
		s.firing[rule.Name] = time.Now()
	}
	s.mu.Unlock()

	if alreadyFiring {
		return
	}

	now := time.Now()
	if err := s.db.Model(rule).Update("last_triggered", now).Error; err != nil {
		log.Printf("MonitoringService: Failed to record trigger time for %s: %v", rule.Name, err)
	}

	message := fmt.Sprintf("Alert %s fired: %s (threshold %d, observed %d)", rule.Name, detail, rule.Threshold, count)
	log.Printf("MonitoringService: %s", message)

	if s.notifier != nil {
		if err := s.notifier.NotifyAlert(rule, message); err != nil {
			log.Printf("MonitoringService: Failed to send alert notification for %s: %v", rule.Name, err)
		}
	}
}

// clear removes a rule from the firing set once its condition recovers and
// sends a single resolution notice on the falling edge
func (s *MonitoringService) clear(rule *database.AlertRule) {
	s.mu.Lock()
	since, wasFiring := s.firing[rule.Name]
	if wasFiring {
		delete(s.firing, rule.Name)
	}
	s.mu.Unlock()

	if !wasFiring {
		return
	}

	message := fmt.Sprintf("Alert %s resolved after %v", rule.Name, time.Since(since).Round(time.Second))
	log.Printf("MonitoringService: %s", message)

	if s.notifier != nil {
		if err := s.notifier.NotifyAlertResolved(rule, message); err != nil {
			log.Printf("MonitoringService: Failed to send resolution notification for %s: %v", rule.Name, err)
		}
	}
}

// FiringAlerts returns the names of alerts currently firing
func (s *MonitoringService) FiringAlerts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.firing))
	for name := range s.firing {
		names = append(names, name)
	}
	return names
}

// AddAlertRule persists a new alert rule
func (s *MonitoringService) AddAlertRule(rule *database.AlertRule) error {
	if !rule.Condition.IsValid() {
		return fmt.Errorf("unknown alert condition %q: %w", rule.Condition, ErrValidation)
	}
	if rule.Threshold <= 0 || rule.TimeWindowMinutes <= 0 {
		return fmt.Errorf("threshold and time window must be positive: %w", ErrValidation)
	}
	if err := s.db.Create(rule).Error; err != nil {
		return fmt.Errorf("failed to create alert rule: %w", err)
	}
	log.Printf("MonitoringService: Added alert rule %s (%s >= %d per %dm)", rule.Name, rule.Condition, rule.Threshold, rule.TimeWindowMinutes)
	return nil
}

// RemoveAlertRule deletes an alert rule by name
func (s *MonitoringService) RemoveAlertRule(name string) error {
	result := s.db.Where("name = ?", name).Delete(&database.AlertRule{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete alert rule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return NotFoundError("alert rule", name)
	}

	s.mu.Lock()
	delete(s.firing, name)
	s.mu.Unlock()

	log.Printf("MonitoringService: Removed alert rule %s", name)
	return nil
}

// GetAlertRules returns all alert rules
func (s *MonitoringService) GetAlertRules() ([]database.AlertRule, error) {
	var rules []database.AlertRule
	if err := s.db.Order("name").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to list alert rules: %w", err)
	}
	return rules, nil
}

// SystemHealth is a snapshot of incident and remediation activity
type SystemHealth struct {
	OpenIncidents      int64     `json:"open_incidents"`
	CriticalIncidents  int64     `json:"critical_incidents"`
	IncidentsLastHour  int64     `json:"incidents_last_hour"`
	PendingApprovals   int64     `json:"pending_approvals"`
	ActiveRemediations int64     `json:"active_remediations"`
	FailedRemediations int64     `json:"failed_remediations_last_day"`
	FiringAlerts       []string  `json:"firing_alerts"`
	GeneratedAt        time.Time `json:"generated_at"`
}

// GetSystemHealth computes the current health snapshot
func (s *MonitoringService) GetSystemHealth() (*SystemHealth, error) {
	health := &SystemHealth{
		FiringAlerts: s.FiringAlerts(),
		GeneratedAt:  time.Now(),
	}

	activeStatuses := []database.IncidentStatus{database.IncidentStatusOpen, database.IncidentStatusInvestigating}

	queries := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&health.OpenIncidents, s.db.Model(&database.ErrorIncident{}).Where("status IN ?", activeStatuses)},
		{&health.CriticalIncidents, s.db.Model(&database.ErrorIncident{}).Where("status IN ? AND severity = ?", activeStatuses, database.SeverityCritical)},
		{&health.IncidentsLastHour, s.db.Model(&database.ErrorIncident{}).Where("last_occurred >= ?", time.Now().Add(-time.Hour))},
		{&health.PendingApprovals, s.db.Model(&database.ApprovalRecord{}).Where("status = ?", database.ApprovalStatusPending)},
		{&health.ActiveRemediations, s.db.Model(&database.RemediationAttempt{}).Where("status NOT IN ?", []database.AttemptStatus{database.AttemptStatusApproved, database.AttemptStatusFailed})},
		{&health.FailedRemediations, s.db.Model(&database.RemediationAttempt{}).Where("status = ? AND updated_at >= ?", database.AttemptStatusFailed, time.Now().Add(-24*time.Hour))},
	}

	for _, q := range queries {
		if err := q.query.Count(q.dest).Error; err != nil {
			return nil, fmt.Errorf("failed to compute system health: %w", err)
		}
	}

	return health, nil
}

// alertRuleFile is the YAML schema for externally managed alert rules
type alertRuleFile struct {
	Rules []struct {
		Name              string   `yaml:"name"`
		Condition         string   `yaml:"condition"`
		Threshold         int      `yaml:"threshold"`
		TimeWindowMinutes int      `yaml:"time_window_minutes"`
		Severity          string   `yaml:"severity"`
		Channels          []string `yaml:"channels"`
		Enabled           *bool    `yaml:"enabled"`
	} `yaml:"rules"`
}

// LoadRulesFromFile loads alert rules from a YAML file, upserting by name.
// Rules already in the database keep their LastTriggered history.
func (s *MonitoringService) LoadRulesFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read alert rules file: %w", err)
	}

	var file alertRuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse alert rules file: %w", err)
	}

	for _, spec := range file.Rules {
		condition := database.AlertCondition(spec.Condition)
		if !condition.IsValid() {
			return fmt.Errorf("rule %s: unknown condition %q", spec.Name, spec.Condition)
		}

		enabled := true
		if spec.Enabled != nil {
			enabled = *spec.Enabled
		}

		rule := database.AlertRule{
			Name:              spec.Name,
			Condition:         condition,
			Threshold:         spec.Threshold,
			TimeWindowMinutes: spec.TimeWindowMinutes,
			Severity:          database.NormalizeSeverity(spec.Severity),
			Channels:          spec.Channels,
			Enabled:           enabled,
		}

		var existing database.AlertRule
		err := s.db.Where("name = ?", spec.Name).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := s.db.Create(&rule).Error; err != nil {
				return fmt.Errorf("rule %s: %w", spec.Name, err)
			}
		case err != nil:
			return fmt.Errorf("rule %s: %w", spec.Name, err)
		default:
			rule.ID = existing.ID
			rule.LastTriggered = existing.LastTriggered
			if err := s.db.Save(&rule).Error; err != nil {
				return fmt.Errorf("rule %s: %w", spec.Name, err)
			}
		}
	}

	log.Printf("MonitoringService: Loaded %d alert rule(s) from %s", len(file.Rules), path)
	return nil
}
