// Package store persists moderation state, the points ledger, the audit log
// and the read-mostly catalog. Memory and Postgres implement the same Store.
package store

import (
	"context"
	"time"

	"geekshub-backend-go/internal/models"

	"github.com/pkg/errors"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
)

type RequestFilter struct {
	UserID        string
	Status        models.RequestStatus
	ExcludeStatus models.RequestStatus
	Search        string
}

type AuditFilter struct {
	Action   models.AuditAction
	ActorID  string
	TargetID string
	Limit    int
	Offset   int
}

type CourseFilter struct {
	MajorID    string
	SemesterID string
	YearID     string
}

type FileFilter struct {
	CourseID   string
	LecturerID string
	Type       models.MaterialType
	Search     string
}

type UserFilter struct {
	Search string
	Limit  int
	Offset int
}

// Tx is the unit of work every moderation transition runs in.
type Tx interface {
	GetRequest(ctx context.Context, id string) (*models.FileRequest, error)
	InsertRequest(ctx context.Context, req *models.FileRequest) error
	UpdateRequest(ctx context.Context, req *models.FileRequest) error

	TransactionForRequest(ctx context.Context, requestID string) (*models.PointsTransaction, error)
	InsertTransaction(ctx context.Context, tx *models.PointsTransaction) error
	DeleteTransactionForRequest(ctx context.Context, requestID string) (bool, error)

	AppendAudit(ctx context.Context, entry *models.AuditLogEntry) error
}

type Store interface {
	Tx
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	ListRequests(ctx context.Context, filter RequestFilter) ([]models.FileRequest, error)
	RequestStats(ctx context.Context, since time.Time) (models.RequestStats, error)

	ListTransactions(ctx context.Context, userID string) ([]models.PointsTransaction, error)
	TopContributors(ctx context.Context, limit int) ([]models.Contributor, error)

	ListAudit(ctx context.Context, filter AuditFilter) ([]models.AuditLogEntry, int, error)

	ListMajors(ctx context.Context) ([]models.Major, error)
	ListYears(ctx context.Context) ([]models.AcademicYear, error)
	ListSemesters(ctx context.Context) ([]models.Semester, error)
	ListCourses(ctx context.Context, filter CourseFilter) ([]models.Course, error)
	GetCourse(ctx context.Context, id string) (*models.Course, error)
	ListLecturers(ctx context.Context, courseID string) ([]models.Lecturer, error)
	GetLecturer(ctx context.Context, id string) (*models.Lecturer, error)
	ListFiles(ctx context.Context, filter FileFilter) ([]models.File, error)
	GetFile(ctx context.Context, id string) (*models.File, error)

	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error)
	InsertUser(ctx context.Context, user *models.User) error
	SetUserRole(ctx context.Context, id, role string) error
	SetLastLogin(ctx context.Context, id string, at time.Time) error
	ListUsers(ctx context.Context, filter UserFilter) ([]models.User, int, error)

	InsertMediaAsset(ctx context.Context, asset *models.MediaAsset) error
	GetMediaAsset(ctx context.Context, id string) (*models.MediaAsset, error)

	Ping(ctx context.Context) error
	Close() error
}

const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = 200
)

// NormalizeAuditPage clamps limit and offset to the supported window.
func NormalizeAuditPage(filter AuditFilter) AuditFilter {
	if filter.Limit <= 0 {
		filter.Limit = DefaultAuditLimit
	}
	if filter.Limit > MaxAuditLimit {
		filter.Limit = MaxAuditLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return filter
}
