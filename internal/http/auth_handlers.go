package httpapi

import (
	"net/http"

	"geekshub-backend-go/internal/models"
	"geekshub-backend-go/internal/services"
)

type TokenResponse struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	ExpiresAt    int64    `json:"expiresAt"`
	User         *UserDTO `json:"user,omitempty"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func tokenResponse(pair services.TokenPair, user *models.User) TokenResponse {
	return TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
		User:         toUserDTO(user),
	}
}

func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterInput
	if !decodeJSON(w, r, &req) {
		return
	}
	user, pair, err := s.Accounts.Register(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, tokenResponse(pair, user))
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginInput
	if !decodeJSON(w, r, &req) {
		return
	}
	user, pair, err := s.Accounts.Login(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, tokenResponse(pair, user))
}

func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	pair, err := s.Accounts.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, tokenResponse(pair, nil))
}

// Logout is stateless; clients drop their tokens.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
