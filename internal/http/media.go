package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"geekshub-backend-go/internal/services"
)

type UploadResponse struct {
	AssetID string `json:"assetId"`
	URL     string `json:"url"`
}

const multipartOverhead = 1 << 20

func (s *Server) UploadMedia(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.Media.MaxBytes()+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, http.StatusRequestEntityTooLarge, "The uploaded file is too large")
			return
		}
		WriteError(w, http.StatusBadRequest, "A multipart file field named file is required")
		return
	}
	defer file.Close()

	asset, err := s.Media.Save(r.Context(), currentPrincipal(r).UserID, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, UploadResponse{AssetID: asset.ID, URL: services.BuildAssetURL(asset.ID)})
}

func (s *Server) MediaContent(w http.ResponseWriter, r *http.Request) {
	asset, file, err := s.Media.Open(r.Context(), chi.URLParam(r, "assetId"), currentPrincipal(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer file.Close()
	if asset.Filename != "" {
		w.Header().Set("Content-Disposition", "inline; filename=\""+asset.Filename+"\"")
	}
	w.Header().Set("Content-Type", asset.ContentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, asset.Filename, asset.CreatedAt, file)
}
