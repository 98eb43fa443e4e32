package handlers

import (
	"net/http"

	"github.com/autoremedy/autoremedy/internal/api"
	"github.com/autoremedy/autoremedy/internal/database"
	"github.com/autoremedy/autoremedy/internal/middleware"
)

// handleListApprovals handles GET /api/approvals
func (h *APIHandler) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	params := api.ParsePagination(r)
	status := database.ApprovalStatus(r.URL.Query().Get("status"))

	records, total, err := h.approvalService.ListApprovals(status, params.PerPage, params.Offset())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	api.RespondJSON(w, http.StatusOK, api.PaginatedResponse{
		Data: records,
		Pagination: api.PaginationMeta{
			Page:       params.Page,
			PerPage:    params.PerPage,
			Total:      total,
			TotalPages: params.TotalPages(total),
		},
	})
}

// handleRequestApproval handles POST /api/approvals
func (h *APIHandler) handleRequestApproval(w http.ResponseWriter, r *http.Request) {
	var req api.RequestApprovalRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.IncidentID == "" {
		api.RespondError(w, http.StatusBadRequest, "incident_id is required")
		return
	}

	approvalType := database.ApprovalType(req.ApprovalType)
	if req.ApprovalType == "" {
		approvalType = database.ApprovalTypeManual
	}

	requestedBy := middleware.GetUserFromContext(r.Context())
	if requestedBy == "" {
		requestedBy = "api"
	}

	record, err := h.approvalService.RequestApproval(req.IncidentID, req.RemediationData, approvalType, requestedBy)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	h.publishEvent("approval.requested", record)
	api.RespondJSON(w, http.StatusCreated, record)
}

// handleGetApproval handles GET /api/approvals/{id}
func (h *APIHandler) handleGetApproval(w http.ResponseWriter, r *http.Request) {
	record, err := h.approvalService.GetApproval(r.PathValue("id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, record)
}

// handleApprovalResponse handles POST /api/approvals/{id}/respond
func (h *APIHandler) handleApprovalResponse(w http.ResponseWriter, r *http.Request) {
	var req api.ApprovalResponseRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Action != "approve" && req.Action != "reject" {
		api.RespondError(w, http.StatusBadRequest, "action must be approve or reject")
		return
	}

	approver := req.ApproverID
	if approver == "" {
		approver = middleware.GetUserFromContext(r.Context())
	}
	if approver == "" {
		api.RespondError(w, http.StatusBadRequest, "approver_id is required")
		return
	}

	record, err := h.approvalService.ProcessApprovalResponse(r.PathValue("id"), approver, req.Action == "approve", req.Comment)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	h.publishEvent("approval.responded", record)
	api.RespondJSON(w, http.StatusOK, record)
}
