package services

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/autoremedy/autoremedy/internal/database"
	"github.com/autoremedy/autoremedy/internal/testhelpers"
	"gorm.io/gorm"
)

func setupMonitoringTest(t *testing.T) (*gorm.DB, *MonitoringService, *recordingNotifier) {
	t.Helper()
	db := testhelpers.SetupTestDB(t)
	notifier := &recordingNotifier{}
	svc := NewMonitoringService(db, notifier)
	return db, svc, notifier
}

func seedCriticalIncidents(t *testing.T, db *gorm.DB, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		incident := testhelpers.NewIncidentBuilder().
			WithSeverity(database.SeverityCritical).
			WithErrorMessage("crash " + string(rune('a'+i))).
			Build()
		if err := db.Create(&incident).Error; err != nil {
			t.Fatalf("failed to seed incident: %v", err)
		}
	}
}

func TestEvaluateRulesFiresOnThreshold(t *testing.T) {
	db, svc, notifier := setupMonitoringTest(t)

	rule := testhelpers.NewAlertRuleBuilder().
		WithName("critical-spike").
		WithThreshold(3).
		WithTimeWindow(5).
		Build()
	if err := db.Create(&rule).Error; err != nil {
		t.Fatalf("failed to seed rule: %v", err)
	}

	seedCriticalIncidents(t, db, 2)
	svc.EvaluateRules()
	if len(notifier.alerts) != 0 {
		t.Errorf("expected no alert below threshold, got %v", notifier.alerts)
	}

	seedCriticalIncidents(t, db, 1)
	svc.EvaluateRules()
	if len(notifier.alerts) != 1 {
		t.Fatalf("expected 1 alert at threshold, got %d", len(notifier.alerts))
	}
	if notifier.alerts[0] != "critical-spike" {
		t.Errorf("expected critical-spike alert, got %s", notifier.alerts[0])
	}

	firing := svc.FiringAlerts()
	if len(firing) != 1 || firing[0] != "critical-spike" {
		t.Errorf("expected firing set [critical-spike], got %v", firing)
	}

	var reloaded database.AlertRule
	if err := db.Where("name = ?", "critical-spike").First(&reloaded).Error; err != nil {
		t.Fatalf("failed to reload rule: %v", err)
	}
	if reloaded.LastTriggered == nil {
		t.Error("expected LastTriggered to be set")
	}
}

func TestEvaluateRulesDoesNotRepeatWhileFiring(t *testing.T) {
	db, svc, notifier := setupMonitoringTest(t)

	rule := testhelpers.NewAlertRuleBuilder().WithThreshold(1).Build()
	if err := db.Create(&rule).Error; err != nil {
		t.Fatalf("failed to seed rule: %v", err)
	}
	seedCriticalIncidents(t, db, 1)

	svc.EvaluateRules()
	svc.EvaluateRules()
	svc.EvaluateRules()

	if len(notifier.alerts) != 1 {
		t.Errorf("expected exactly 1 notification while continuously firing, got %d", len(notifier.alerts))
	}
}

func TestEvaluateRulesClearsOnRecovery(t *testing.T) {
	db, svc, notifier := setupMonitoringTest(t)

	rule := testhelpers.NewAlertRuleBuilder().
		WithThreshold(1).
		WithTimeWindow(5).
		Build()
	if err := db.Create(&rule).Error; err != nil {
		t.Fatalf("failed to seed rule: %v", err)
	}

	// One critical incident inside the window, later aged out
	incident := testhelpers.NewIncidentBuilder().
		WithSeverity(database.SeverityCritical).
		Build()
	if err := db.Create(&incident).Error; err != nil {
		t.Fatalf("failed to seed incident: %v", err)
	}

	svc.EvaluateRules()
	if len(svc.FiringAlerts()) != 1 {
		t.Fatal("expected rule to fire")
	}

	// Age the incident out of the window
	old := time.Now().Add(-time.Hour)
	if err := db.Model(&incident).Update("last_occurred", old).Error; err != nil {
		t.Fatalf("failed to age incident: %v", err)
	}

	svc.EvaluateRules()
	if len(svc.FiringAlerts()) != 0 {
		t.Errorf("expected firing set cleared, got %v", svc.FiringAlerts())
	}
	if len(notifier.resolved) != 1 || notifier.resolved[0] != rule.Name {
		t.Errorf("expected one resolution notice for %s, got %v", rule.Name, notifier.resolved)
	}

	// While recovered, further passes stay quiet
	svc.EvaluateRules()
	if len(notifier.resolved) != 1 {
		t.Errorf("expected no repeat resolution notice, got %v", notifier.resolved)
	}

	// A new spike fires again
	seedCriticalIncidents(t, db, 1)
	svc.EvaluateRules()
	if len(notifier.alerts) != 2 {
		t.Errorf("expected re-fire after recovery, got %d notifications", len(notifier.alerts))
	}
}

func TestServiceErrorsCondition(t *testing.T) {
	db, svc, notifier := setupMonitoringTest(t)

	rule := testhelpers.NewAlertRuleBuilder().
		WithName("service-spike").
		WithCondition(database.AlertConditionServiceErrors).
		WithThreshold(2).
		WithTimeWindow(15).
		Build()
	if err := db.Create(&rule).Error; err != nil {
		t.Fatalf("failed to seed rule: %v", err)
	}

	// Two services, only one crosses the threshold
	for i, service := range []string{"payments", "payments", "checkout"} {
		incident := testhelpers.NewIncidentBuilder().
			WithService(service).
			WithErrorMessage("err " + string(rune('a'+i))).
			Build()
		if err := db.Create(&incident).Error; err != nil {
			t.Fatalf("failed to seed incident: %v", err)
		}
	}

	svc.EvaluateRules()
	if len(notifier.alerts) != 1 {
		t.Errorf("expected service-spike to fire, got %v", notifier.alerts)
	}
}

func TestRemediationFailuresCondition(t *testing.T) {
	db, svc, notifier := setupMonitoringTest(t)

	rule := testhelpers.NewAlertRuleBuilder().
		WithName("remediation-failures").
		WithCondition(database.AlertConditionRemediationFailures).
		WithThreshold(2).
		WithTimeWindow(30).
		Build()
	if err := db.Create(&rule).Error; err != nil {
		t.Fatalf("failed to seed rule: %v", err)
	}

	incident := testhelpers.NewIncidentBuilder().Build()
	if err := db.Create(&incident).Error; err != nil {
		t.Fatalf("failed to seed incident: %v", err)
	}
	for i := 0; i < 2; i++ {
		attempt := testhelpers.NewAttemptBuilder(incident.ID).
			WithStatus(database.AttemptStatusFailed).
			Build()
		if err := db.Create(&attempt).Error; err != nil {
			t.Fatalf("failed to seed attempt: %v", err)
		}
	}

	svc.EvaluateRules()
	if len(notifier.alerts) != 1 {
		t.Errorf("expected remediation-failures to fire, got %v", notifier.alerts)
	}
}

func TestDisabledRulesAreSkipped(t *testing.T) {
	db, svc, notifier := setupMonitoringTest(t)

	rule := testhelpers.NewAlertRuleBuilder().
		WithThreshold(1).
		Disabled().
		Build()
	if err := db.Create(&rule).Error; err != nil {
		t.Fatalf("failed to seed rule: %v", err)
	}
	seedCriticalIncidents(t, db, 5)

	svc.EvaluateRules()
	if len(notifier.alerts) != 0 {
		t.Errorf("expected disabled rule not to fire, got %v", notifier.alerts)
	}
}

func TestAddAndRemoveAlertRule(t *testing.T) {
	_, svc, _ := setupMonitoringTest(t)

	rule := testhelpers.NewAlertRuleBuilder().WithName("custom").Build()
	if err := svc.AddAlertRule(&rule); err != nil {
		t.Fatalf("AddAlertRule failed: %v", err)
	}

	rules, err := svc.GetAlertRules()
	if err != nil {
		t.Fatalf("GetAlertRules failed: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}

	if err := svc.RemoveAlertRule("custom"); err != nil {
		t.Fatalf("RemoveAlertRule failed: %v", err)
	}
	if err := svc.RemoveAlertRule("custom"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for removed rule, got %v", err)
	}
}

func TestAddAlertRuleValidation(t *testing.T) {
	_, svc, _ := setupMonitoringTest(t)

	bad := testhelpers.NewAlertRuleBuilder().WithCondition("made_up").Build()
	if err := svc.AddAlertRule(&bad); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for unknown condition, got %v", err)
	}

	zero := testhelpers.NewAlertRuleBuilder().WithThreshold(0).Build()
	if err := svc.AddAlertRule(&zero); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for zero threshold, got %v", err)
	}
}

func TestGetSystemHealth(t *testing.T) {
	db, svc, _ := setupMonitoringTest(t)

	open := testhelpers.NewIncidentBuilder().WithSeverity(database.SeverityCritical).Build()
	resolved := testhelpers.NewIncidentBuilder().
		WithStatus(database.IncidentStatusResolved).
		WithErrorMessage("other").
		Build()
	for _, incident := range []*database.ErrorIncident{&open, &resolved} {
		if err := db.Create(incident).Error; err != nil {
			t.Fatalf("failed to seed incident: %v", err)
		}
	}

	approval := testhelpers.NewApprovalBuilder(open.ID).Build()
	if err := db.Create(&approval).Error; err != nil {
		t.Fatalf("failed to seed approval: %v", err)
	}

	attempt := testhelpers.NewAttemptBuilder(open.ID).Build()
	if err := db.Create(&attempt).Error; err != nil {
		t.Fatalf("failed to seed attempt: %v", err)
	}

	health, err := svc.GetSystemHealth()
	if err != nil {
		t.Fatalf("GetSystemHealth failed: %v", err)
	}

	if health.OpenIncidents != 1 {
		t.Errorf("expected 1 open incident, got %d", health.OpenIncidents)
	}
	if health.CriticalIncidents != 1 {
		t.Errorf("expected 1 critical incident, got %d", health.CriticalIncidents)
	}
	if health.PendingApprovals != 1 {
		t.Errorf("expected 1 pending approval, got %d", health.PendingApprovals)
	}
	if health.ActiveRemediations != 1 {
		t.Errorf("expected 1 active remediation, got %d", health.ActiveRemediations)
	}
}

func TestLoadRulesFromFile(t *testing.T) {
	db, svc, _ := setupMonitoringTest(t)

	content := `rules:
  - name: nightly-spike
    condition: critical_errors
    threshold: 5
    time_window_minutes: 10
    severity: critical
    channels: [slack]
  - name: quiet-rule
    condition: error_rate
    threshold: 100
    time_window_minutes: 60
    severity: low
    enabled: false
`
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write rules file: %v", err)
	}

	if err := svc.LoadRulesFromFile(path); err != nil {
		t.Fatalf("LoadRulesFromFile failed: %v", err)
	}

	var rules []database.AlertRule
	if err := db.Order("name").Find(&rules).Error; err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	if rules[0].Name != "nightly-spike" || !rules[0].Enabled {
		t.Errorf("unexpected first rule: %+v", rules[0])
	}
	if rules[1].Name != "quiet-rule" || rules[1].Enabled {
		t.Errorf("expected quiet-rule disabled: %+v", rules[1])
	}

	// Re-loading upserts rather than duplicating
	if err := svc.LoadRulesFromFile(path); err != nil {
		t.Fatalf("second LoadRulesFromFile failed: %v", err)
	}
	var count int64
	if err := db.Model(&database.AlertRule{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count rules: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 rules after reload, got %d", count)
	}
}

func TestLoadRulesFromFileRejectsUnknownCondition(t *testing.T) {
	_, svc, _ := setupMonitoringTest(t)

	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := "rules:\n  - name: broken\n    condition: nonsense\n    threshold: 1\n    time_window_minutes: 5\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write rules file: %v", err)
	}

	if err := svc.LoadRulesFromFile(path); err == nil {
		t.Error("expected error for unknown condition")
	}
}
