package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	user, err := s.Accounts.Get(r.Context(), currentPrincipal(r).UserID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, toUserDTO(user))
}

func (s *Server) MyReputation(w http.ResponseWriter, r *http.Request) {
	rep, err := s.Ledger.Reputation(r.Context(), currentPrincipal(r).UserID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, toReputationDTO(rep))
}

func (s *Server) MyFileRequests(w http.ResponseWriter, r *http.Request) {
	items, err := s.Requests.ListMine(r.Context(), currentPrincipal(r).UserID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, ListResponse[FileRequestDTO]{Items: toFileRequestDTOs(items)})
}

func (s *Server) WithdrawFileRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.Moderation.Withdraw(r.Context(), chi.URLParam(r, "id"), currentPrincipal(r).Actor())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, toFileRequestDTO(*req))
}
