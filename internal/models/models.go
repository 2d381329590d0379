package models

import "time"

type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusApproved  RequestStatus = "approved"
	StatusRejected  RequestStatus = "rejected"
	StatusWithdrawn RequestStatus = "withdrawn"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusWithdrawn:
		return true
	}
	return false
}

type MaterialType string

const (
	MaterialSlides     MaterialType = "Slides"
	MaterialHomeworks  MaterialType = "Homeworks"
	MaterialPastPapers MaterialType = "Past Papers"
	MaterialNotes      MaterialType = "Notes"
)

var MaterialTypes = []MaterialType{MaterialSlides, MaterialHomeworks, MaterialPastPapers, MaterialNotes}

func (t MaterialType) Valid() bool {
	for _, known := range MaterialTypes {
		if t == known {
			return true
		}
	}
	return false
}

type RejectReason string

const (
	RejectDuplicate       RejectReason = "DUPLICATE"
	RejectOutdated        RejectReason = "OUTDATED"
	RejectIncorrectCourse RejectReason = "INCORRECT_COURSE"
	RejectBadQuality      RejectReason = "BAD_QUALITY"
	RejectOther           RejectReason = "OTHER"
)

var RejectReasons = []RejectReason{RejectDuplicate, RejectOutdated, RejectIncorrectCourse, RejectBadQuality, RejectOther}

func (r RejectReason) Valid() bool {
	for _, known := range RejectReasons {
		if r == known {
			return true
		}
	}
	return false
}

type AuditAction string

const (
	ActionApprove     AuditAction = "APPROVE"
	ActionReject      AuditAction = "REJECT"
	ActionBulkApprove AuditAction = "BULK_APPROVE"
	ActionBulkReject  AuditAction = "BULK_REJECT"
	ActionWithdraw    AuditAction = "WITHDRAW"
	ActionUndoApprove AuditAction = "UNDO_APPROVE"
	ActionUndoReject  AuditAction = "UNDO_REJECT"
)

func (a AuditAction) Valid() bool {
	switch a {
	case ActionApprove, ActionReject, ActionBulkApprove, ActionBulkReject,
		ActionWithdraw, ActionUndoApprove, ActionUndoReject:
		return true
	}
	return false
}

const (
	RoleStudent   = "STUDENT"
	RoleAdmin     = "ADMIN"
	RoleModerator = "MODERATOR"
)

var Roles = []string{RoleStudent, RoleAdmin, RoleModerator}

type User struct {
	ID           string     `db:"id"`
	Email        string     `db:"email"`
	DisplayName  string     `db:"display_name"`
	PasswordHash *string    `db:"password_hash"`
	Role         string     `db:"role"`
	ExternalID   *string    `db:"external_id"`
	Major        *string    `db:"major"`
	CreatedAt    time.Time  `db:"created_at"`
	LastLoginAt  *time.Time `db:"last_login_at"`
}

type FileRequest struct {
	ID              string        `db:"id"`
	UserID          string        `db:"user_id"`
	UploaderName    string        `db:"uploader_name"`
	CourseID        string        `db:"course_id"`
	LecturerID      *string       `db:"lecturer_id"`
	LecturerName    string        `db:"lecturer_name"`
	Type            MaterialType  `db:"type"`
	Title           string        `db:"title"`
	Notes           *string       `db:"notes"`
	StoragePath     *string       `db:"storage_path"`
	Status          RequestStatus `db:"status"`
	CreatedAt       time.Time     `db:"created_at"`
	ReviewedAt      *time.Time    `db:"reviewed_at"`
	ReviewedByID    *string       `db:"reviewed_by_id"`
	PointsAwarded   *int          `db:"points_awarded"`
	RejectionReason *RejectReason `db:"rejection_reason"`
	RejectionNote   *string       `db:"rejection_note"`
}

// ClearReview drops every reviewer stamp so the request looks freshly submitted.
func (r *FileRequest) ClearReview() {
	r.ReviewedAt = nil
	r.ReviewedByID = nil
	r.PointsAwarded = nil
	r.RejectionReason = nil
	r.RejectionNote = nil
}

type PointsTransaction struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Amount    int       `db:"amount"`
	Reason    string    `db:"reason"`
	CreatedAt time.Time `db:"created_at"`
	RequestID *string   `db:"request_id"`
}

type AuditMetadata struct {
	PreviousStatus RequestStatus `json:"previousStatus,omitempty"`
	NewStatus      RequestStatus `json:"newStatus,omitempty"`
	Reason         RejectReason  `json:"reason,omitempty"`
	Note           string        `json:"note,omitempty"`
	PointsAwarded  int           `json:"pointsAwarded,omitempty"`
	Processed      int           `json:"processed,omitempty"`
	Skipped        int           `json:"skipped,omitempty"`
	SkippedIDs     []string      `json:"skippedIds,omitempty"`
}

type AuditLogEntry struct {
	ID        string
	Timestamp time.Time
	ActorID   string
	ActorName string
	Action    AuditAction
	TargetIDs []string
	Metadata  AuditMetadata
}

type Major struct {
	ID   string `db:"id"`
	Name string `db:"name"`
	Slug string `db:"slug"`
}

type AcademicYear struct {
	ID    string `db:"id"`
	Label string `db:"label"`
}

type Semester struct {
	ID   string `db:"id"`
	Name string `db:"name"`
}

type Course struct {
	ID         string `db:"id"`
	Code       string `db:"code"`
	Name       string `db:"name"`
	Term       string `db:"term"`
	Color      string `db:"color"`
	MajorID    string `db:"major_id"`
	SemesterID string `db:"semester_id"`
	YearID     string `db:"year_id"`
}

type Lecturer struct {
	ID   string `db:"id"`
	Name string `db:"name"`
}

type File struct {
	ID           string       `db:"id"`
	Title        string       `db:"title"`
	Type         MaterialType `db:"type"`
	LecturerID   *string      `db:"lecturer_id"`
	LecturerName string       `db:"lecturer_name"`
	CourseID     string       `db:"course_id"`
	SizeBytes    int64        `db:"size_bytes"`
	Points       *int         `db:"points"`
	Status       string       `db:"status"`
	CreatedAt    time.Time    `db:"created_at"`
}

type MediaAsset struct {
	ID          string    `db:"id"`
	OwnerID     string    `db:"owner_id"`
	Filename    string    `db:"filename"`
	ContentType string    `db:"content_type"`
	SizeBytes   int64     `db:"size_bytes"`
	SHA256      string    `db:"sha256"`
	StorageKey  string    `db:"storage_key"`
	CreatedAt   time.Time `db:"created_at"`
}

type Contributor struct {
	ID     string  `db:"id"`
	Name   string  `db:"name"`
	Points int     `db:"points"`
	Major  *string `db:"major"`
}

type RequestStats struct {
	Pending       int `db:"pending"`
	ApprovedToday int `db:"approved_today"`
	RejectedToday int `db:"rejected_today"`
	Total         int `db:"total"`
}
