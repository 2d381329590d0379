package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"geekshub-backend-go/internal/models"
	"geekshub-backend-go/internal/services"
	"geekshub-backend-go/internal/store"
)

type RejectRequest struct {
	Reason models.RejectReason `json:"reason"`
	Note   string              `json:"note"`
}

type BulkApproveRequest struct {
	IDs []string `json:"ids"`
}

type BulkRejectRequest struct {
	IDs    []string            `json:"ids"`
	Reason models.RejectReason `json:"reason"`
	Note   string              `json:"note"`
}

type BulkApproveResponse struct {
	Approved   int      `json:"approved"`
	Skipped    int      `json:"skipped"`
	SkippedIDs []string `json:"skippedIds"`
}

type BulkRejectResponse struct {
	Rejected   int      `json:"rejected"`
	Skipped    int      `json:"skipped"`
	SkippedIDs []string `json:"skippedIds"`
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func (s *Server) CreateFileRequest(w http.ResponseWriter, r *http.Request) {
	var req services.CreateRequestInput
	if !decodeJSON(w, r, &req) {
		return
	}
	created, err := s.Requests.Create(r.Context(), currentPrincipal(r).Actor(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, toFileRequestDTO(*created))
}

func (s *Server) ListFileRequests(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	items, err := s.Requests.ListAll(r.Context(), query.Get("status"), query.Get("search"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, ListResponse[FileRequestDTO]{Items: toFileRequestDTOs(items)})
}

func (s *Server) FileRequestStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Requests.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, StatsDTO{
		Pending:       stats.Pending,
		ApprovedToday: stats.ApprovedToday,
		RejectedToday: stats.RejectedToday,
		Total:         stats.Total,
	})
}

func (s *Server) writeTransition(w http.ResponseWriter, r *http.Request, req *models.FileRequest, err error) {
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, toFileRequestDTO(*req))
}

func (s *Server) Approve(w http.ResponseWriter, r *http.Request) {
	req, err := s.Moderation.Approve(r.Context(), chi.URLParam(r, "id"), currentPrincipal(r).Actor())
	s.writeTransition(w, r, req, err)
}

func (s *Server) Reject(w http.ResponseWriter, r *http.Request) {
	var body RejectRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	req, err := s.Moderation.Reject(r.Context(), chi.URLParam(r, "id"), currentPrincipal(r).Actor(), body.Reason, body.Note)
	s.writeTransition(w, r, req, err)
}

func (s *Server) UndoApprove(w http.ResponseWriter, r *http.Request) {
	req, err := s.Moderation.UndoApprove(r.Context(), chi.URLParam(r, "id"), currentPrincipal(r).Actor())
	s.writeTransition(w, r, req, err)
}

func (s *Server) UndoReject(w http.ResponseWriter, r *http.Request) {
	req, err := s.Moderation.UndoReject(r.Context(), chi.URLParam(r, "id"), currentPrincipal(r).Actor())
	s.writeTransition(w, r, req, err)
}

func (s *Server) BulkApprove(w http.ResponseWriter, r *http.Request) {
	var body BulkApproveRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	result, err := s.Moderation.BulkApprove(r.Context(), body.IDs, currentPrincipal(r).Actor())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, BulkApproveResponse{Approved: result.Processed, Skipped: result.Skipped, SkippedIDs: nonNil(result.SkippedIDs)})
}

func (s *Server) BulkReject(w http.ResponseWriter, r *http.Request) {
	var body BulkRejectRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	result, err := s.Moderation.BulkReject(r.Context(), body.IDs, currentPrincipal(r).Actor(), body.Reason, body.Note)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, BulkRejectResponse{Rejected: result.Processed, Skipped: result.Skipped, SkippedIDs: nonNil(result.SkippedIDs)})
}

func (s *Server) AuditLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, err := s.Audit.List(r.Context(), store.AuditFilter{
		Action:   models.AuditAction(query.Get("action")),
		ActorID:  query.Get("actorId"),
		TargetID: query.Get("targetId"),
		Limit:    parseInt(query.Get("limit"), 0),
		Offset:   parseInt(query.Get("offset"), 0),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, toAuditPageResponse(page))
}
