package services

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"geekshub-backend-go/internal/models"
	"geekshub-backend-go/internal/store"
)

const MaxSearchResults = 20

type SearchResult struct {
	Kind     string
	ID       string
	Title    string
	Subtitle string
	CourseID string
}

type Catalog struct {
	store store.Store
}

func NewCatalog(st store.Store) *Catalog {
	return &Catalog{store: st}
}

func (c *Catalog) Majors(ctx context.Context) ([]models.Major, error) {
	items, err := c.store.ListMajors(ctx)
	return items, WrapError(err, "list majors")
}

func (c *Catalog) Years(ctx context.Context) ([]models.AcademicYear, error) {
	items, err := c.store.ListYears(ctx)
	return items, WrapError(err, "list years")
}

func (c *Catalog) Semesters(ctx context.Context) ([]models.Semester, error) {
	items, err := c.store.ListSemesters(ctx)
	return items, WrapError(err, "list semesters")
}

func (c *Catalog) Courses(ctx context.Context, filter store.CourseFilter) ([]models.Course, error) {
	items, err := c.store.ListCourses(ctx, filter)
	return items, WrapError(err, "list courses")
}

func (c *Catalog) Course(ctx context.Context, id string) (*models.Course, error) {
	course, err := c.store.GetCourse(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound("Course not found")
	}
	return course, WrapError(err, "load course")
}

func (c *Catalog) Lecturers(ctx context.Context, courseID string) ([]models.Lecturer, error) {
	items, err := c.store.ListLecturers(ctx, courseID)
	return items, WrapError(err, "list lecturers")
}

func (c *Catalog) Files(ctx context.Context, filter store.FileFilter) ([]models.File, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, ErrValidation(map[string]string{"type": "unknown material type"})
	}
	items, err := c.store.ListFiles(ctx, filter)
	return items, WrapError(err, "list files")
}

func (c *Catalog) File(ctx context.Context, id string) (*models.File, error) {
	file, err := c.store.GetFile(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound("File not found")
	}
	return file, WrapError(err, "load file")
}

// Search matches courses by code or name, then files by title.
func (c *Catalog) Search(ctx context.Context, query string) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []SearchResult{}, nil
	}
	needle := strings.ToLower(query)
	results := make([]SearchResult, 0, MaxSearchResults)

	courses, err := c.store.ListCourses(ctx, store.CourseFilter{})
	if err != nil {
		return nil, WrapError(err, "search courses")
	}
	for _, course := range courses {
		if len(results) == MaxSearchResults {
			return results, nil
		}
		if strings.Contains(strings.ToLower(course.Code), needle) || strings.Contains(strings.ToLower(course.Name), needle) {
			results = append(results, SearchResult{
				Kind:     "course",
				ID:       course.ID,
				Title:    course.Code + " " + course.Name,
				Subtitle: course.Term,
				CourseID: course.ID,
			})
		}
	}

	files, err := c.store.ListFiles(ctx, store.FileFilter{Search: query})
	if err != nil {
		return nil, WrapError(err, "search files")
	}
	for _, file := range files {
		if len(results) == MaxSearchResults {
			break
		}
		results = append(results, SearchResult{
			Kind:     "file",
			ID:       file.ID,
			Title:    file.Title,
			Subtitle: file.LecturerName,
			CourseID: file.CourseID,
		})
	}
	return results, nil
}
