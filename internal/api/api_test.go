package api

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParsePagination_Defaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/incidents", nil)
	p := ParsePagination(r)
	if p.Page != 1 || p.PerPage != 50 {
		t.Errorf("unexpected defaults %+v", p)
	}
	if p.Offset() != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset())
	}
}

func TestParsePagination_Explicit(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/incidents?page=3&per_page=20", nil)
	p := ParsePagination(r)
	if p.Page != 3 || p.PerPage != 20 {
		t.Errorf("unexpected params %+v", p)
	}
	if p.Offset() != 40 {
		t.Errorf("expected offset 40, got %d", p.Offset())
	}
}

func TestParsePagination_ClampsAndIgnoresGarbage(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/incidents?page=-1&per_page=10000", nil)
	p := ParsePagination(r)
	if p.Page != 1 {
		t.Errorf("negative page should fall back to 1, got %d", p.Page)
	}
	if p.PerPage != 200 {
		t.Errorf("per_page should be capped at 200, got %d", p.PerPage)
	}

	r = httptest.NewRequest("GET", "/api/incidents?page=abc", nil)
	if p := ParsePagination(r); p.Page != 1 {
		t.Errorf("non-numeric page should fall back to 1, got %d", p.Page)
	}
}

func TestTotalPages(t *testing.T) {
	p := PaginationParams{Page: 1, PerPage: 50}
	tests := []struct {
		total    int64
		expected int
	}{
		{0, 0},
		{1, 1},
		{50, 1},
		{51, 2},
		{100, 2},
	}
	for _, tt := range tests {
		if got := p.TotalPages(tt.total); got != tt.expected {
			t.Errorf("TotalPages(%d) = %d, want %d", tt.total, got, tt.expected)
		}
	}
}

func TestParseLimitOffset(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/audit?limit=25&offset=10", nil)
	limit, offset := ParseLimitOffset(r)
	if limit != 25 || offset != 10 {
		t.Errorf("unexpected limit=%d offset=%d", limit, offset)
	}

	r = httptest.NewRequest("GET", "/api/audit", nil)
	limit, offset = ParseLimitOffset(r)
	if limit != 50 || offset != 0 {
		t.Errorf("unexpected defaults limit=%d offset=%d", limit, offset)
	}
}

func TestRespondError(t *testing.T) {
	w := httptest.NewRecorder()
	RespondError(w, 404, "incident not found")

	if w.Code != 404 {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %s", ct)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Error != "incident not found" {
		t.Errorf("unexpected error message %q", resp.Error)
	}
}

func TestRespondValidationError(t *testing.T) {
	w := httptest.NewRecorder()
	RespondValidationError(w, map[string]string{"error_type": "error_type is required"})

	if w.Code != 422 {
		t.Errorf("expected 422, got %d", w.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Code != "validation_error" {
		t.Errorf("unexpected code %q", resp.Code)
	}
	if resp.Details["error_type"] == "" {
		t.Error("expected field detail for error_type")
	}
}

func TestDecodeJSON_UnknownField(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/incidents", bytes.NewBufferString(`{"error_typo":"x"}`))
	var req CreateIncidentRequest
	err := DecodeJSON(r, &req)
	if err == nil || !strings.Contains(err.Error(), "unknown field") {
		t.Errorf("expected unknown field error, got %v", err)
	}
}

func TestDecodeJSON_EmptyBody(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/incidents", bytes.NewBuffer(nil))
	var req CreateIncidentRequest
	err := DecodeJSON(r, &req)
	if err == nil || !strings.Contains(err.Error(), "empty") {
		t.Errorf("expected empty body error, got %v", err)
	}
}

func TestDecodeJSON_MalformedJSON(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/incidents", bytes.NewBufferString(`{"error_type":`))
	var req CreateIncidentRequest
	if err := DecodeJSON(r, &req); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestCreateIncidentRequest_Validate(t *testing.T) {
	valid := CreateIncidentRequest{
		ErrorType:    "TypeError",
		ErrorMessage: "boom",
		ServiceName:  "payments",
		Environment:  "production",
	}
	if errs := valid.Validate(); errs != nil {
		t.Errorf("expected no errors, got %v", errs)
	}

	invalid := CreateIncidentRequest{ErrorMessage: "boom"}
	errs := invalid.Validate()
	for _, field := range []string{"error_type", "service_name", "environment"} {
		if errs[field] == "" {
			t.Errorf("expected error for %s", field)
		}
	}
}

func TestCreateAlertRuleRequest_Validate(t *testing.T) {
	valid := CreateAlertRuleRequest{
		Name:              "spike",
		Condition:         "critical_errors",
		Threshold:         3,
		TimeWindowMinutes: 5,
	}
	if errs := valid.Validate(); errs != nil {
		t.Errorf("expected no errors, got %v", errs)
	}

	invalid := CreateAlertRuleRequest{Condition: "vibes", Threshold: -1}
	errs := invalid.Validate()
	for _, field := range []string{"name", "condition", "threshold", "time_window_minutes"} {
		if errs[field] == "" {
			t.Errorf("expected error for %s", field)
		}
	}
}
