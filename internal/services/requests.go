package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"geekshub-backend-go/internal/models"
	"geekshub-backend-go/internal/store"
	"geekshub-backend-go/internal/telemetry"
)

const UnknownLecturer = "Unknown Lecturer"

type CreateRequestInput struct {
	CourseID     string  `json:"courseId" validate:"notblank"`
	LecturerID   *string `json:"lecturerId"`
	LecturerName *string `json:"lecturerName" validate:"omitempty,max=255"`
	Type         string  `json:"type" validate:"material_type"`
	Title        string  `json:"title" validate:"notblank,max=255"`
	Notes        *string `json:"notes" validate:"omitempty,max=2000"`
	AssetID      *string `json:"assetId"`
}

type Requests struct {
	store store.Store
	now   func() time.Time
	newID func() string
}

func NewRequests(st store.Store) *Requests {
	return &Requests{
		store: st,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// Create submits a new pending request for user. The lecturer name comes
// from the catalog when lecturerId is known, then from the free text.
func (r *Requests) Create(ctx context.Context, user Actor, input CreateRequestInput) (*models.FileRequest, error) {
	if err := Validate(input); err != nil {
		return nil, err
	}
	courseID := strings.TrimSpace(input.CourseID)
	if _, err := r.store.GetCourse(ctx, courseID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrValidation(map[string]string{"courseId": "unknown course"})
		}
		return nil, WrapError(err, "load course")
	}

	req := &models.FileRequest{
		ID:           r.newID(),
		UserID:       user.ID,
		UploaderName: user.Name,
		CourseID:     courseID,
		LecturerName: UnknownLecturer,
		Type:         models.MaterialType(input.Type),
		Title:        strings.TrimSpace(input.Title),
		Notes:        notePtr(deref(input.Notes)),
		Status:       models.StatusPending,
		CreatedAt:    r.now(),
	}

	if id := strings.TrimSpace(deref(input.LecturerID)); id != "" {
		lecturer, err := r.store.GetLecturer(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrValidation(map[string]string{"lecturerId": "unknown lecturer"})
		}
		if err != nil {
			return nil, WrapError(err, "load lecturer")
		}
		req.LecturerID = &lecturer.ID
		req.LecturerName = lecturer.Name
	} else if name := strings.TrimSpace(deref(input.LecturerName)); name != "" {
		req.LecturerName = name
	}

	if assetID := strings.TrimSpace(deref(input.AssetID)); assetID != "" {
		asset, err := r.store.GetMediaAsset(ctx, assetID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && asset.OwnerID != user.ID) {
			return nil, ErrValidation(map[string]string{"assetId": "unknown upload"})
		}
		if err != nil {
			return nil, WrapError(err, "load media asset")
		}
		req.StoragePath = &asset.ID
	}

	if err := r.store.InsertRequest(ctx, req); err != nil {
		return nil, WrapError(err, "insert file request")
	}
	telemetry.FileRequestsCreatedTotal.Inc()
	return req, nil
}

// ListMine hides withdrawn requests.
func (r *Requests) ListMine(ctx context.Context, userID string) ([]models.FileRequest, error) {
	items, err := r.store.ListRequests(ctx, store.RequestFilter{UserID: userID, ExcludeStatus: models.StatusWithdrawn})
	return items, WrapError(err, "list my file requests")
}

func (r *Requests) ListAll(ctx context.Context, status, search string) ([]models.FileRequest, error) {
	filter := store.RequestFilter{Search: strings.TrimSpace(search)}
	if status = strings.ToLower(strings.TrimSpace(status)); status != "" && status != "all" {
		if !models.RequestStatus(status).Valid() {
			return nil, ErrValidation(map[string]string{"status": "unknown status"})
		}
		filter.Status = models.RequestStatus(status)
	}
	items, err := r.store.ListRequests(ctx, filter)
	return items, WrapError(err, "list file requests")
}

// Stats counts today's decisions from UTC midnight.
func (r *Requests) Stats(ctx context.Context) (models.RequestStats, error) {
	now := r.now()
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	stats, err := r.store.RequestStats(ctx, since)
	return stats, WrapError(err, "request stats")
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
