package httpapi

import (
	"time"

	"geekshub-backend-go/internal/models"
	"geekshub-backend-go/internal/services"
)

type UserDTO struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"displayName"`
	Role        string     `json:"role"`
	Major       *string    `json:"major,omitempty"`
	Avatar      string     `json:"avatar"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

func toUserDTO(user *models.User) *UserDTO {
	if user == nil {
		return nil
	}
	return &UserDTO{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        user.Role,
		Major:       user.Major,
		Avatar:      services.Initials(user.DisplayName),
		CreatedAt:   user.CreatedAt,
		LastLoginAt: user.LastLoginAt,
	}
}

type FileRequestDTO struct {
	ID              string               `json:"id"`
	UserID          string               `json:"userId"`
	UploaderName    string               `json:"uploaderName"`
	CourseID        string               `json:"courseId"`
	LecturerID      *string              `json:"lecturerId"`
	LecturerName    string               `json:"lecturerName"`
	Type            models.MaterialType  `json:"type"`
	Title           string               `json:"title"`
	Notes           *string              `json:"notes"`
	StoragePath     *string              `json:"storagePath"`
	FileURL         *string              `json:"fileUrl,omitempty"`
	Status          models.RequestStatus `json:"status"`
	CreatedAt       time.Time            `json:"createdAt"`
	ReviewedAt      *time.Time           `json:"reviewedAt"`
	ReviewedByID    *string              `json:"reviewedById"`
	PointsAwarded   *int                 `json:"pointsAwarded"`
	RejectionReason *models.RejectReason `json:"rejectionReason"`
	RejectionNote   *string              `json:"rejectionNote"`
}

func toFileRequestDTO(req models.FileRequest) FileRequestDTO {
	dto := FileRequestDTO{
		ID:              req.ID,
		UserID:          req.UserID,
		UploaderName:    req.UploaderName,
		CourseID:        req.CourseID,
		LecturerID:      req.LecturerID,
		LecturerName:    req.LecturerName,
		Type:            req.Type,
		Title:           req.Title,
		Notes:           req.Notes,
		StoragePath:     req.StoragePath,
		Status:          req.Status,
		CreatedAt:       req.CreatedAt,
		ReviewedAt:      req.ReviewedAt,
		ReviewedByID:    req.ReviewedByID,
		PointsAwarded:   req.PointsAwarded,
		RejectionReason: req.RejectionReason,
		RejectionNote:   req.RejectionNote,
	}
	if req.StoragePath != nil && *req.StoragePath != "" {
		url := services.BuildAssetURL(*req.StoragePath)
		dto.FileURL = &url
	}
	return dto
}

func toFileRequestDTOs(items []models.FileRequest) []FileRequestDTO {
	out := make([]FileRequestDTO, 0, len(items))
	for _, item := range items {
		out = append(out, toFileRequestDTO(item))
	}
	return out
}

type TransactionDTO struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Amount    int       `json:"amount"`
	Reason    string    `json:"reason"`
	Date      time.Time `json:"date"`
	RequestID *string   `json:"requestId"`
}

type ReputationDTO struct {
	UserID       string           `json:"userId"`
	TotalPoints  int              `json:"totalPoints"`
	Badge        string           `json:"badge"`
	Transactions []TransactionDTO `json:"transactions"`
}

func toReputationDTO(rep services.Reputation) ReputationDTO {
	out := ReputationDTO{UserID: rep.UserID, TotalPoints: rep.TotalPoints, Badge: rep.Badge, Transactions: []TransactionDTO{}}
	for _, tx := range rep.Transactions {
		out.Transactions = append(out.Transactions, TransactionDTO{
			ID:        tx.ID,
			UserID:    tx.UserID,
			Amount:    tx.Amount,
			Reason:    tx.Reason,
			Date:      tx.CreatedAt,
			RequestID: tx.RequestID,
		})
	}
	return out
}

type ContributorDTO struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Avatar string  `json:"avatar"`
	Points int     `json:"points"`
	Badge  string  `json:"badge"`
	Major  *string `json:"major,omitempty"`
}

type AuditLogDTO struct {
	ID        string               `json:"id"`
	Timestamp time.Time            `json:"timestamp"`
	ActorID   string               `json:"actorId"`
	ActorName string               `json:"actorName"`
	Action    models.AuditAction   `json:"action"`
	TargetIDs []string             `json:"targetIds"`
	Metadata  models.AuditMetadata `json:"metadata"`
}

type AuditPageResponse struct {
	Items  []AuditLogDTO `json:"items"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

func toAuditPageResponse(page services.AuditPage) AuditPageResponse {
	out := AuditPageResponse{Items: make([]AuditLogDTO, 0, len(page.Items)), Total: page.Total, Limit: page.Limit, Offset: page.Offset}
	for _, entry := range page.Items {
		out.Items = append(out.Items, AuditLogDTO{
			ID:        entry.ID,
			Timestamp: entry.Timestamp,
			ActorID:   entry.ActorID,
			ActorName: entry.ActorName,
			Action:    entry.Action,
			TargetIDs: entry.TargetIDs,
			Metadata:  entry.Metadata,
		})
	}
	return out
}

type StatsDTO struct {
	Pending       int `json:"pending"`
	ApprovedToday int `json:"approvedToday"`
	RejectedToday int `json:"rejectedToday"`
	Total         int `json:"total"`
}

type MajorDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type YearDTO struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type SemesterDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CourseDTO struct {
	ID         string `json:"id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	Term       string `json:"term"`
	Color      string `json:"color"`
	MajorID    string `json:"majorId"`
	SemesterID string `json:"semesterId"`
	YearID     string `json:"yearId"`
}

func toCourseDTO(c models.Course) CourseDTO {
	return CourseDTO{ID: c.ID, Code: c.Code, Name: c.Name, Term: c.Term, Color: c.Color,
		MajorID: c.MajorID, SemesterID: c.SemesterID, YearID: c.YearID}
}

type LecturerDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type FileDTO struct {
	ID           string              `json:"id"`
	Title        string              `json:"title"`
	Type         models.MaterialType `json:"type"`
	LecturerID   *string             `json:"lecturerId"`
	LecturerName string              `json:"lecturerName"`
	CourseID     string              `json:"courseId"`
	SizeBytes    int64               `json:"sizeBytes"`
	Points       *int                `json:"points"`
	Status       string              `json:"status"`
	CreatedAt    time.Time           `json:"createdAt"`
}

func toFileDTO(f models.File) FileDTO {
	return FileDTO{ID: f.ID, Title: f.Title, Type: f.Type, LecturerID: f.LecturerID, LecturerName: f.LecturerName,
		CourseID: f.CourseID, SizeBytes: f.SizeBytes, Points: f.Points, Status: f.Status, CreatedAt: f.CreatedAt}
}

type SearchResultDTO struct {
	Kind     string `json:"kind"`
	ID       string `json:"id"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	CourseID string `json:"courseId"`
}

type ListResponse[T any] struct {
	Items []T `json:"items"`
}
