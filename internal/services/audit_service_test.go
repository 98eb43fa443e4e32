package services

import (
	"testing"

	"github.com/autoremedy/autoremedy/internal/testhelpers"
)

func TestAuditRecordAndList(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	svc := NewAuditService(db)

	svc.Record(AuditEntry{
		UserID:       "admin",
		Action:       "incident.status_changed",
		ResourceType: "incident",
		ResourceID:   "inc-1",
		Details:      map[string]interface{}{"from": "open", "to": "resolved"},
		IPAddress:    "10.0.0.1",
	})
	svc.Record(AuditEntry{
		UserID:       "system",
		Action:       "approval.expired",
		ResourceType: "approval",
		ResourceID:   "app-1",
	})

	entries, total, err := svc.List(AuditFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 2 || len(entries) != 2 {
		t.Fatalf("expected 2 entries, got total=%d len=%d", total, len(entries))
	}

	entries, total, err = svc.List(AuditFilter{UserID: "admin"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 1 {
		t.Errorf("expected 1 admin entry, got %d", total)
	}
	if entries[0].Action != "incident.status_changed" {
		t.Errorf("unexpected action %s", entries[0].Action)
	}
	if entries[0].Details["to"] != "resolved" {
		t.Errorf("expected details stored, got %v", entries[0].Details)
	}

	_, total, err = svc.List(AuditFilter{ResourceType: "approval"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 1 {
		t.Errorf("expected 1 approval entry, got %d", total)
	}
}

func TestAuditListPagination(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	svc := NewAuditService(db)

	for i := 0; i < 5; i++ {
		svc.Record(AuditEntry{UserID: "admin", Action: "incident.viewed"})
	}

	entries, total, err := svc.List(AuditFilter{Limit: 2, Offset: 0})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 5 {
		t.Errorf("expected total 5, got %d", total)
	}
	if len(entries) != 2 {
		t.Errorf("expected page of 2, got %d", len(entries))
	}
}
