package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"geekshub-backend-go/internal/models"
	"geekshub-backend-go/internal/store"
)

// DemoPassword is the password of every seeded demo account.
const DemoPassword = "geekshub-demo"

type demoUser struct {
	id, email, name, role, major string
}

var demoUsers = []demoUser{
	{"u1", "john.doe@geekshub.local", "John Doe", models.RoleStudent, "Computer Science"},
	{"u2", "jane.smith@geekshub.local", "Jane Smith", models.RoleStudent, "Mathematics"},
	{"u3", "bob.wilson@geekshub.local", "Bob Wilson", models.RoleStudent, "Computer Science"},
	{"u4", "alice.brown@geekshub.local", "Alice Brown", models.RoleStudent, "Physics"},
	{"admin1", "admin@geekshub.local", "Admin User", models.RoleAdmin, ""},
}

func demoRequests() []models.FileRequest {
	ts := func(value string) time.Time {
		t, _ := time.Parse(time.RFC3339, value)
		return t
	}
	tsPtr := func(value string) *time.Time {
		t := ts(value)
		return &t
	}
	str := func(value string) *string { return &value }
	num := func(value int) *int { return &value }
	outdated := models.RejectOutdated
	return []models.FileRequest{
		{ID: "req1", UserID: "u1", UploaderName: "John Doe", Title: "Midterm Review.pdf", Type: models.MaterialNotes, LecturerName: "Dr. Smith", LecturerID: str("l1"), CreatedAt: ts("2024-12-27T10:00:00Z"), Status: models.StatusPending, CourseID: "cs101"},
		{ID: "req2", UserID: "u1", UploaderName: "John Doe", Title: "Old Syllabus.docx", Type: models.MaterialNotes, LecturerName: "Dr. Smith", LecturerID: str("l1"), CreatedAt: ts("2024-12-20T09:00:00Z"), Status: models.StatusRejected, RejectionReason: &outdated, RejectionNote: str("This syllabus is from 2020"), CourseID: "cs101"},
		{ID: "req3", UserID: "u1", UploaderName: "John Doe", Title: "Calculus Cheat Sheet.pdf", Type: models.MaterialNotes, LecturerName: "Prof. Johnson", LecturerID: str("l2"), CreatedAt: ts("2024-12-20T14:00:00Z"), Status: models.StatusApproved, PointsAwarded: num(25), ReviewedAt: tsPtr("2024-12-21T10:00:00Z"), ReviewedByID: str("admin1"), CourseID: "math201"},
		{ID: "req4", UserID: "u1", UploaderName: "John Doe", Title: "Physics Lab Data.xlsx", Type: models.MaterialHomeworks, LecturerName: "Dr. Emily Davis", LecturerID: str("l3"), CreatedAt: ts("2024-12-22T11:00:00Z"), Status: models.StatusApproved, PointsAwarded: num(15), ReviewedAt: tsPtr("2024-12-23T09:00:00Z"), ReviewedByID: str("admin1"), CourseID: "phys101"},
		{ID: "req5", UserID: "u2", UploaderName: "Jane Smith", Title: "Algorithm Complexity Notes.pdf", Type: models.MaterialNotes, LecturerName: "Dr. Smith", LecturerID: str("l1"), CreatedAt: ts("2024-12-26T14:30:00Z"), Status: models.StatusPending, CourseID: "cs101"},
		{ID: "req6", UserID: "u3", UploaderName: "Bob Wilson", Title: "Sorting Visualizations.pptx", Type: models.MaterialSlides, LecturerName: "Dr. Smith", LecturerID: str("l1"), CreatedAt: ts("2024-12-26T16:00:00Z"), Status: models.StatusPending, CourseID: "cs101"},
		{ID: "req7", UserID: "u2", UploaderName: "Jane Smith", Title: "Matrix Operations Guide.pdf", Type: models.MaterialNotes, LecturerName: "Prof. Johnson", LecturerID: str("l2"), CreatedAt: ts("2024-12-27T08:00:00Z"), Status: models.StatusPending, CourseID: "math201"},
		{ID: "req8", UserID: "u4", UploaderName: "Alice Brown", Title: "Past Exam 2023.pdf", Type: models.MaterialPastPapers, LecturerName: "Dr. Emily Davis", LecturerID: str("l3"), CreatedAt: ts("2024-12-27T09:30:00Z"), Status: models.StatusPending, CourseID: "phys101"},
	}
}

// SeedDemoData inserts the demo accounts, requests and the ledger rows of
// the already approved requests. Rows that exist are left alone, so it is
// safe to run on every start.
func SeedDemoData(ctx context.Context, st store.Store, tokens TokenService) error {
	hash, err := tokens.HashPassword(DemoPassword)
	if err != nil {
		return WrapError(err, "hash demo password")
	}
	created := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	for _, du := range demoUsers {
		user := &models.User{
			ID:           du.id,
			Email:        du.email,
			DisplayName:  du.name,
			PasswordHash: &hash,
			Role:         du.role,
			CreatedAt:    created,
		}
		if du.major != "" {
			major := du.major
			user.Major = &major
		}
		if err := st.InsertUser(ctx, user); err != nil && !errors.Is(err, store.ErrDuplicate) {
			return WrapError(err, "seed user "+du.id)
		}
	}

	return st.WithTx(ctx, func(tx store.Tx) error {
		for _, req := range demoRequests() {
			req := req
			if _, err := tx.GetRequest(ctx, req.ID); err == nil {
				continue
			}
			if err := tx.InsertRequest(ctx, &req); err != nil {
				return WrapError(err, "seed request "+req.ID)
			}
			if req.Status != models.StatusApproved || req.PointsAwarded == nil {
				continue
			}
			requestID := req.ID
			err := tx.InsertTransaction(ctx, &models.PointsTransaction{
				ID:        "tx-" + req.ID,
				UserID:    req.UserID,
				Amount:    *req.PointsAwarded,
				Reason:    ApprovalReason,
				CreatedAt: *req.ReviewedAt,
				RequestID: &requestID,
			})
			if err != nil && !errors.Is(err, store.ErrDuplicate) {
				return WrapError(err, "seed points for "+req.ID)
			}
		}
		slog.Info("demo data seeded", "users", len(demoUsers))
		return nil
	})
}
