package jobs

import (
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/autoremedy/autoremedy/internal/database"
	"github.com/autoremedy/autoremedy/internal/services"
	"github.com/autoremedy/autoremedy/internal/testhelpers"
)

func newMonitor(db *gorm.DB) *ApprovalExpiryMonitor {
	audit := services.NewAuditService(db)
	return NewApprovalExpiryMonitor(services.NewApprovalService(db, nil, audit))
}

func TestApprovalExpiryMonitor_ExpiresOverdueApprovals(t *testing.T) {
	db := testhelpers.SetupTestDB(t)

	incident := testhelpers.NewIncidentBuilder().Build()
	if err := db.Create(&incident).Error; err != nil {
		t.Fatalf("failed to create incident: %v", err)
	}

	overdue := testhelpers.NewApprovalBuilder(incident.ID).
		ExpiredAt(time.Now().Add(-5 * time.Minute)).
		Build()
	if err := db.Create(&overdue).Error; err != nil {
		t.Fatalf("failed to create overdue approval: %v", err)
	}

	fresh := testhelpers.NewApprovalBuilder(incident.ID).Build()
	if err := db.Create(&fresh).Error; err != nil {
		t.Fatalf("failed to create fresh approval: %v", err)
	}

	monitor := newMonitor(db)
	expired, err := monitor.Sweep()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if expired != 1 {
		t.Errorf("expected 1 expired approval, got %d", expired)
	}

	var overdueAfter, freshAfter database.ApprovalRecord
	if err := db.First(&overdueAfter, "id = ?", overdue.ID).Error; err != nil {
		t.Fatalf("failed to load overdue approval: %v", err)
	}
	if overdueAfter.Status != database.ApprovalStatusExpired {
		t.Errorf("overdue approval should be expired, got %s", overdueAfter.Status)
	}
	if err := db.First(&freshAfter, "id = ?", fresh.ID).Error; err != nil {
		t.Fatalf("failed to load fresh approval: %v", err)
	}
	if freshAfter.Status != database.ApprovalStatusPending {
		t.Errorf("fresh approval should stay pending, got %s", freshAfter.Status)
	}
}

func TestApprovalExpiryMonitor_NoPendingApprovals(t *testing.T) {
	db := testhelpers.SetupTestDB(t)

	monitor := newMonitor(db)
	expired, err := monitor.Sweep()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if expired != 0 {
		t.Errorf("expected 0 expired approvals, got %d", expired)
	}
}

func TestApprovalExpiryMonitor_StartStops(t *testing.T) {
	db := testhelpers.SetupTestDB(t)

	monitor := newMonitor(db)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		monitor.Start(10*time.Millisecond, stop)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	close(stop)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}
