package store

import (
	"time"

	"geekshub-backend-go/internal/models"
)

// Catalog is the read-mostly browse hierarchy. The Postgres schema seeds the
// same rows in V2__catalog_seed.sql.
type Catalog struct {
	Majors          []models.Major
	Years           []models.AcademicYear
	Semesters       []models.Semester
	Courses         []models.Course
	Lecturers       []models.Lecturer
	CourseLecturers map[string][]string
	Files           []models.File
}

func DemoCatalog() Catalog {
	l1, l2, l3, l4 := "l1", "l2", "l3", "l4"
	points := func(v int) *int { return &v }
	day := func(value string) time.Time {
		t, _ := time.Parse("2006-01-02", value)
		return t
	}
	return Catalog{
		Majors: []models.Major{
			{ID: "cs", Name: "Computer Science", Slug: "cs"},
			{ID: "math", Name: "Mathematics", Slug: "math"},
			{ID: "phys", Name: "Physics", Slug: "phys"},
		},
		Years: []models.AcademicYear{
			{ID: "1", Label: "Freshman"},
			{ID: "2", Label: "Sophomore"},
			{ID: "3", Label: "Junior"},
			{ID: "4", Label: "Senior"},
		},
		Semesters: []models.Semester{
			{ID: "fall2024", Name: "Fall 2024"},
			{ID: "spring2025", Name: "Spring 2025"},
		},
		Courses: []models.Course{
			{ID: "cs101", Code: "CS101", Name: "Introduction to Algorithms", Term: "Fall 2024", Color: "from-violet-500 to-purple-600", MajorID: "cs", SemesterID: "fall2024", YearID: "1"},
			{ID: "cs102", Code: "CS102", Name: "Data Structures", Term: "Spring 2025", Color: "from-violet-500 to-purple-600", MajorID: "cs", SemesterID: "spring2025", YearID: "1"},
			{ID: "math201", Code: "MATH201", Name: "Linear Algebra", Term: "Fall 2024", Color: "from-blue-500 to-cyan-500", MajorID: "math", SemesterID: "fall2024", YearID: "2"},
			{ID: "math202", Code: "MATH202", Name: "Calculus II", Term: "Spring 2025", Color: "from-blue-500 to-cyan-500", MajorID: "math", SemesterID: "spring2025", YearID: "2"},
			{ID: "phys101", Code: "PHYS101", Name: "Classical Mechanics", Term: "Fall 2024", Color: "from-emerald-500 to-teal-500", MajorID: "phys", SemesterID: "fall2024", YearID: "1"},
			{ID: "phys102", Code: "PHYS102", Name: "Electromagnetism", Term: "Spring 2025", Color: "from-emerald-500 to-teal-500", MajorID: "phys", SemesterID: "spring2025", YearID: "1"},
		},
		Lecturers: []models.Lecturer{
			{ID: l1, Name: "Dr. Smith"},
			{ID: l2, Name: "Prof. Johnson"},
			{ID: l3, Name: "Dr. Emily Davis"},
			{ID: l4, Name: "TA. Mike"},
		},
		CourseLecturers: map[string][]string{
			"cs101":   {l1, l4},
			"cs102":   {l1},
			"math201": {l2},
			"math202": {l2},
			"phys101": {l3},
			"phys102": {l3},
		},
		Files: []models.File{
			{ID: "123", Title: "Introduction to Algorithms.pdf", Type: models.MaterialNotes, LecturerID: &l1, LecturerName: "Dr. Smith", CourseID: "cs101", SizeBytes: 2516582, Points: points(20), Status: "approved", CreatedAt: day("2024-10-24")},
			{ID: "124", Title: "Sorting Algorithms.pptx", Type: models.MaterialSlides, LecturerID: &l1, LecturerName: "Dr. Smith", CourseID: "cs101", SizeBytes: 12582912, Points: points(15), Status: "approved", CreatedAt: day("2024-10-26")},
			{ID: "125", Title: "Homework 3 Solutions.pdf", Type: models.MaterialHomeworks, LecturerID: &l4, LecturerName: "TA. Mike", CourseID: "cs101", SizeBytes: 1153433, Points: points(10), Status: "approved", CreatedAt: day("2024-11-01")},
			{ID: "126", Title: "Linear Algebra Notes.pdf", Type: models.MaterialNotes, LecturerID: &l2, LecturerName: "Prof. Johnson", CourseID: "math201", SizeBytes: 1887436, Status: "approved", CreatedAt: day("2024-12-27")},
			{ID: "127", Title: "Physics Lab Report.docx", Type: models.MaterialHomeworks, LecturerID: &l3, LecturerName: "Dr. Emily Davis", CourseID: "phys101", SizeBytes: 3670016, Status: "approved", CreatedAt: day("2024-12-26")},
		},
	}
}
