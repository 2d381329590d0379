package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"geekshub-backend-go/internal/services"
	"geekshub-backend-go/internal/store"
)

type PagedResponse struct {
	Items    []*UserDTO `json:"items"`
	Total    int        `json:"total"`
	Page     int        `json:"page"`
	PageSize int        `json:"pageSize"`
}

func (s *Server) ListUsers(w http.ResponseWriter, r *http.Request) {
	page := parseInt(r.URL.Query().Get("page"), 1)
	if page < 1 {
		page = 1
	}
	pageSize := parseInt(r.URL.Query().Get("pageSize"), 20)
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	users, total, err := s.Accounts.List(r.Context(), store.UserFilter{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	items := make([]*UserDTO, 0, len(users))
	for i := range users {
		items = append(items, toUserDTO(&users[i]))
	}
	WriteJSON(w, http.StatusOK, PagedResponse{Items: items, Total: total, Page: page, PageSize: pageSize})
}

func (s *Server) SetUserRole(w http.ResponseWriter, r *http.Request) {
	var req services.SetRoleInput
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Role = strings.ToUpper(strings.TrimSpace(req.Role))
	user, err := s.Accounts.SetRole(r.Context(), currentPrincipal(r).Actor(), chi.URLParam(r, "userId"), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, toUserDTO(user))
}
