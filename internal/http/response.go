package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"geekshub-backend-go/internal/services"
)

type ErrorResponse struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Message: message})
}

// writeServiceError answers with the status carried by a ServiceError.
// Anything else is a 500 and goes to the error reporter.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if serr, ok := services.AsServiceError(err); ok {
		WriteJSON(w, serr.Status, ErrorResponse{Message: serr.Message, Errors: serr.Fields})
		return
	}
	s.Reporter.Error(err, r)
	WriteError(w, http.StatusInternalServerError, "Internal server error")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid payload")
		return false
	}
	return true
}

func parseInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
