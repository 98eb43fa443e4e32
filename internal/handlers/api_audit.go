package handlers

import (
	"net/http"

	"github.com/autoremedy/autoremedy/internal/api"
	"github.com/autoremedy/autoremedy/internal/services"
)

// handleListAuditLogs handles GET /api/audit
func (h *APIHandler) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	params := api.ParsePagination(r)
	q := r.URL.Query()

	entries, total, err := h.auditService.List(services.AuditFilter{
		UserID:       q.Get("user_id"),
		Action:       q.Get("action"),
		ResourceType: q.Get("resource_type"),
		ResourceID:   q.Get("resource_id"),
		Limit:        params.PerPage,
		Offset:       params.Offset(),
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	api.RespondJSON(w, http.StatusOK, api.PaginatedResponse{
		Data: entries,
		Pagination: api.PaginationMeta{
			Page:       params.Page,
			PerPage:    params.PerPage,
			Total:      total,
			TotalPages: params.TotalPages(total),
		},
	})
}
