package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"geekshub-backend-go/internal/models"
	"geekshub-backend-go/internal/store"
)

const defaultTopContributors = 10

func (s *Server) Majors(w http.ResponseWriter, r *http.Request) {
	majors, err := s.Catalog.Majors(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	items := make([]MajorDTO, 0, len(majors))
	for _, m := range majors {
		items = append(items, MajorDTO{ID: m.ID, Name: m.Name, Slug: m.Slug})
	}
	WriteJSON(w, http.StatusOK, ListResponse[MajorDTO]{Items: items})
}

func (s *Server) Years(w http.ResponseWriter, r *http.Request) {
	years, err := s.Catalog.Years(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	items := make([]YearDTO, 0, len(years))
	for _, y := range years {
		items = append(items, YearDTO{ID: y.ID, Label: y.Label})
	}
	WriteJSON(w, http.StatusOK, ListResponse[YearDTO]{Items: items})
}

func (s *Server) Semesters(w http.ResponseWriter, r *http.Request) {
	semesters, err := s.Catalog.Semesters(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	items := make([]SemesterDTO, 0, len(semesters))
	for _, sem := range semesters {
		items = append(items, SemesterDTO{ID: sem.ID, Name: sem.Name})
	}
	WriteJSON(w, http.StatusOK, ListResponse[SemesterDTO]{Items: items})
}

func (s *Server) Courses(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	courses, err := s.Catalog.Courses(r.Context(), store.CourseFilter{
		MajorID:    query.Get("majorId"),
		SemesterID: query.Get("semesterId"),
		YearID:     query.Get("yearId"),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	items := make([]CourseDTO, 0, len(courses))
	for _, c := range courses {
		items = append(items, toCourseDTO(c))
	}
	WriteJSON(w, http.StatusOK, ListResponse[CourseDTO]{Items: items})
}

func (s *Server) Course(w http.ResponseWriter, r *http.Request) {
	course, err := s.Catalog.Course(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, toCourseDTO(*course))
}

func (s *Server) Lecturers(w http.ResponseWriter, r *http.Request) {
	lecturers, err := s.Catalog.Lecturers(r.Context(), r.URL.Query().Get("courseId"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	items := make([]LecturerDTO, 0, len(lecturers))
	for _, l := range lecturers {
		items = append(items, LecturerDTO{ID: l.ID, Name: l.Name})
	}
	WriteJSON(w, http.StatusOK, ListResponse[LecturerDTO]{Items: items})
}

func (s *Server) Files(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	files, err := s.Catalog.Files(r.Context(), store.FileFilter{
		CourseID:   query.Get("courseId"),
		LecturerID: query.Get("lecturerId"),
		Type:       models.MaterialType(query.Get("type")),
		Search:     query.Get("search"),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	items := make([]FileDTO, 0, len(files))
	for _, f := range files {
		items = append(items, toFileDTO(f))
	}
	WriteJSON(w, http.StatusOK, ListResponse[FileDTO]{Items: items})
}

func (s *Server) File(w http.ResponseWriter, r *http.Request) {
	file, err := s.Catalog.File(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, toFileDTO(*file))
}

func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	results, err := s.Catalog.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	items := make([]SearchResultDTO, 0, len(results))
	for _, res := range results {
		items = append(items, SearchResultDTO{Kind: res.Kind, ID: res.ID, Title: res.Title, Subtitle: res.Subtitle, CourseID: res.CourseID})
	}
	WriteJSON(w, http.StatusOK, ListResponse[SearchResultDTO]{Items: items})
}

func (s *Server) TopContributors(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), defaultTopContributors)
	contributors, err := s.Ledger.TopContributors(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	items := make([]ContributorDTO, 0, len(contributors))
	for _, c := range contributors {
		items = append(items, ContributorDTO{ID: c.ID, Name: c.Name, Avatar: c.Avatar, Points: c.Points, Badge: c.Badge, Major: c.Major})
	}
	WriteJSON(w, http.StatusOK, ListResponse[ContributorDTO]{Items: items})
}
