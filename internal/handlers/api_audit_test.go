package handlers

import (
	"net/http"
	"testing"

	"github.com/autoremedy/autoremedy/internal/database"
	"github.com/autoremedy/autoremedy/internal/testhelpers"
)

func TestListAuditLogs_FiltersByAction(t *testing.T) {
	mux, db := newTestAPI(t)

	entries := []database.AuditLog{
		{UserID: "alice", Action: "incident.status_changed", ResourceType: "incident", ResourceID: "inc-1"},
		{UserID: "bob", Action: "approval.approved", ResourceType: "approval", ResourceID: "apr-1"},
		{UserID: "alice", Action: "approval.approved", ResourceType: "approval", ResourceID: "apr-2"},
	}
	for i := range entries {
		if err := db.Create(&entries[i]).Error; err != nil {
			t.Fatalf("failed to seed audit log: %v", err)
		}
	}

	var resp struct {
		Data       []database.AuditLog `json:"data"`
		Pagination struct {
			Total int64 `json:"total"`
		} `json:"pagination"`
	}
	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/api/audit?action=approval.approved", nil).
		Execute(mux).
		AssertStatus(http.StatusOK).
		DecodeJSON(&resp)

	if resp.Pagination.Total != 2 {
		t.Errorf("expected total 2, got %d", resp.Pagination.Total)
	}
	for _, entry := range resp.Data {
		if entry.Action != "approval.approved" {
			t.Errorf("unexpected action %s in filtered list", entry.Action)
		}
	}
}

func TestListAuditLogs_FiltersByUser(t *testing.T) {
	mux, db := newTestAPI(t)

	entries := []database.AuditLog{
		{UserID: "alice", Action: "incident.status_changed"},
		{UserID: "bob", Action: "incident.status_changed"},
	}
	for i := range entries {
		if err := db.Create(&entries[i]).Error; err != nil {
			t.Fatalf("failed to seed audit log: %v", err)
		}
	}

	var resp struct {
		Data []database.AuditLog `json:"data"`
	}
	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/api/audit?user_id=bob", nil).
		Execute(mux).
		AssertStatus(http.StatusOK).
		DecodeJSON(&resp)

	if len(resp.Data) != 1 || resp.Data[0].UserID != "bob" {
		t.Errorf("expected only bob's entries, got %+v", resp.Data)
	}
}

func TestListAuditLogs_Empty(t *testing.T) {
	mux, _ := newTestAPI(t)

	var resp struct {
		Pagination struct {
			Total int64 `json:"total"`
		} `json:"pagination"`
	}
	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/api/audit", nil).
		Execute(mux).
		AssertStatus(http.StatusOK).
		DecodeJSON(&resp)

	if resp.Pagination.Total != 0 {
		t.Errorf("expected empty audit trail, got %d", resp.Pagination.Total)
	}
}
