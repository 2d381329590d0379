package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"geekshub-backend-go/internal/models"
)

// Memory keeps everything in process. WithTx holds the write lock for the
// whole unit of work and restores a snapshot when fn fails.
type Memory struct {
	mu   sync.RWMutex
	data *memData
}

type memData struct {
	requests     map[string]models.FileRequest
	transactions map[string]models.PointsTransaction
	txByRequest  map[string]string
	audit        []models.AuditLogEntry

	users map[string]models.User
	media map[string]models.MediaAsset

	catalog Catalog
}

var _ Store = (*Memory)(nil)

func NewMemory(catalog Catalog) *Memory {
	return &Memory{data: &memData{
		requests:     map[string]models.FileRequest{},
		transactions: map[string]models.PointsTransaction{},
		txByRequest:  map[string]string{},
		users:        map[string]models.User{},
		media:        map[string]models.MediaAsset{},
		catalog:      catalog,
	}}
}

type memSnapshot struct {
	requests     map[string]models.FileRequest
	transactions map[string]models.PointsTransaction
	txByRequest  map[string]string
	auditLen     int
}

func (d *memData) snapshot() memSnapshot {
	snap := memSnapshot{
		requests:     make(map[string]models.FileRequest, len(d.requests)),
		transactions: make(map[string]models.PointsTransaction, len(d.transactions)),
		txByRequest:  make(map[string]string, len(d.txByRequest)),
		auditLen:     len(d.audit),
	}
	for k, v := range d.requests {
		snap.requests[k] = v
	}
	for k, v := range d.transactions {
		snap.transactions[k] = v
	}
	for k, v := range d.txByRequest {
		snap.txByRequest[k] = v
	}
	return snap
}

func (d *memData) restore(snap memSnapshot) {
	d.requests = snap.requests
	d.transactions = snap.transactions
	d.txByRequest = snap.txByRequest
	d.audit = d.audit[:snap.auditLen]
}

func (m *Memory) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.data.snapshot()
	if err := fn(m.data); err != nil {
		m.data.restore(snap)
		return err
	}
	return nil
}

func (m *Memory) GetRequest(ctx context.Context, id string) (*models.FileRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.GetRequest(ctx, id)
}

func (m *Memory) InsertRequest(ctx context.Context, req *models.FileRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.InsertRequest(ctx, req)
}

func (m *Memory) UpdateRequest(ctx context.Context, req *models.FileRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.UpdateRequest(ctx, req)
}

func (m *Memory) TransactionForRequest(ctx context.Context, requestID string) (*models.PointsTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.TransactionForRequest(ctx, requestID)
}

func (m *Memory) InsertTransaction(ctx context.Context, tx *models.PointsTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.InsertTransaction(ctx, tx)
}

func (m *Memory) DeleteTransactionForRequest(ctx context.Context, requestID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.DeleteTransactionForRequest(ctx, requestID)
}

func (m *Memory) AppendAudit(ctx context.Context, entry *models.AuditLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.AppendAudit(ctx, entry)
}

func (d *memData) GetRequest(_ context.Context, id string) (*models.FileRequest, error) {
	req, ok := d.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &req, nil
}

func (d *memData) InsertRequest(_ context.Context, req *models.FileRequest) error {
	if _, ok := d.requests[req.ID]; ok {
		return ErrDuplicate
	}
	d.requests[req.ID] = *req
	return nil
}

func (d *memData) UpdateRequest(_ context.Context, req *models.FileRequest) error {
	if _, ok := d.requests[req.ID]; !ok {
		return ErrNotFound
	}
	d.requests[req.ID] = *req
	return nil
}

func (d *memData) TransactionForRequest(_ context.Context, requestID string) (*models.PointsTransaction, error) {
	id, ok := d.txByRequest[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	tx := d.transactions[id]
	return &tx, nil
}

func (d *memData) InsertTransaction(_ context.Context, tx *models.PointsTransaction) error {
	if tx.RequestID != nil {
		if _, ok := d.txByRequest[*tx.RequestID]; ok {
			return ErrDuplicate
		}
		d.txByRequest[*tx.RequestID] = tx.ID
	}
	d.transactions[tx.ID] = *tx
	return nil
}

func (d *memData) DeleteTransactionForRequest(_ context.Context, requestID string) (bool, error) {
	id, ok := d.txByRequest[requestID]
	if !ok {
		return false, nil
	}
	delete(d.txByRequest, requestID)
	delete(d.transactions, id)
	return true, nil
}

func (d *memData) AppendAudit(_ context.Context, entry *models.AuditLogEntry) error {
	stored := *entry
	stored.TargetIDs = append([]string(nil), entry.TargetIDs...)
	d.audit = append(d.audit, stored)
	return nil
}

func (m *Memory) ListRequests(_ context.Context, filter RequestFilter) ([]models.FileRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	items := make([]models.FileRequest, 0)
	for _, req := range m.data.requests {
		if filter.UserID != "" && req.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		if filter.ExcludeStatus != "" && req.Status == filter.ExcludeStatus {
			continue
		}
		if search != "" && !matchesRequest(req, search) {
			continue
		}
		items = append(items, req)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

func matchesRequest(req models.FileRequest, search string) bool {
	return strings.Contains(strings.ToLower(req.Title), search) ||
		strings.Contains(strings.ToLower(req.UploaderName), search) ||
		strings.Contains(strings.ToLower(req.CourseID), search)
}

func (m *Memory) RequestStats(_ context.Context, since time.Time) (models.RequestStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := models.RequestStats{}
	for _, req := range m.data.requests {
		stats.Total++
		reviewedToday := req.ReviewedAt != nil && !req.ReviewedAt.Before(since)
		switch req.Status {
		case models.StatusPending:
			stats.Pending++
		case models.StatusApproved:
			if reviewedToday {
				stats.ApprovedToday++
			}
		case models.StatusRejected:
			if reviewedToday {
				stats.RejectedToday++
			}
		}
	}
	return stats, nil
}

func (m *Memory) ListTransactions(_ context.Context, userID string) ([]models.PointsTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]models.PointsTransaction, 0)
	for _, tx := range m.data.transactions {
		if tx.UserID == userID {
			items = append(items, tx)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

func (m *Memory) TopContributors(_ context.Context, limit int) ([]models.Contributor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	totals := map[string]int{}
	for _, tx := range m.data.transactions {
		totals[tx.UserID] += tx.Amount
	}
	items := make([]models.Contributor, 0, len(totals))
	for userID, points := range totals {
		name := userID
		var major *string
		if user, ok := m.data.users[userID]; ok {
			name = user.DisplayName
			major = user.Major
		}
		items = append(items, models.Contributor{ID: userID, Name: name, Points: points, Major: major})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Points == items[j].Points {
			return items[i].Name < items[j].Name
		}
		return items[i].Points > items[j].Points
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *Memory) ListAudit(_ context.Context, filter AuditFilter) ([]models.AuditLogEntry, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	filter = NormalizeAuditPage(filter)
	matched := make([]models.AuditLogEntry, 0)
	for i := len(m.data.audit) - 1; i >= 0; i-- {
		entry := m.data.audit[i]
		if filter.Action != "" && entry.Action != filter.Action {
			continue
		}
		if filter.ActorID != "" && entry.ActorID != filter.ActorID {
			continue
		}
		if filter.TargetID != "" && !containsString(entry.TargetIDs, filter.TargetID) {
			continue
		}
		matched = append(matched, entry)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})
	total := len(matched)
	if filter.Offset >= total {
		return []models.AuditLogEntry{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return matched[filter.Offset:end], total, nil
}

func containsString(items []string, value string) bool {
	for _, item := range items {
		if item == value {
			return true
		}
	}
	return false
}

func (m *Memory) ListMajors(context.Context) ([]models.Major, error) {
	return append([]models.Major(nil), m.data.catalog.Majors...), nil
}

func (m *Memory) ListYears(context.Context) ([]models.AcademicYear, error) {
	return append([]models.AcademicYear(nil), m.data.catalog.Years...), nil
}

func (m *Memory) ListSemesters(context.Context) ([]models.Semester, error) {
	return append([]models.Semester(nil), m.data.catalog.Semesters...), nil
}

func (m *Memory) ListCourses(_ context.Context, filter CourseFilter) ([]models.Course, error) {
	items := make([]models.Course, 0)
	for _, course := range m.data.catalog.Courses {
		if filter.MajorID != "" && course.MajorID != filter.MajorID {
			continue
		}
		if filter.SemesterID != "" && course.SemesterID != filter.SemesterID {
			continue
		}
		if filter.YearID != "" && course.YearID != filter.YearID {
			continue
		}
		items = append(items, course)
	}
	return items, nil
}

func (m *Memory) GetCourse(_ context.Context, id string) (*models.Course, error) {
	for _, course := range m.data.catalog.Courses {
		if course.ID == id {
			c := course
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListLecturers(_ context.Context, courseID string) ([]models.Lecturer, error) {
	if courseID == "" {
		return append([]models.Lecturer(nil), m.data.catalog.Lecturers...), nil
	}
	ids := m.data.catalog.CourseLecturers[courseID]
	items := make([]models.Lecturer, 0, len(ids))
	for _, lecturer := range m.data.catalog.Lecturers {
		if containsString(ids, lecturer.ID) {
			items = append(items, lecturer)
		}
	}
	return items, nil
}

func (m *Memory) GetLecturer(_ context.Context, id string) (*models.Lecturer, error) {
	for _, lecturer := range m.data.catalog.Lecturers {
		if lecturer.ID == id {
			l := lecturer
			return &l, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListFiles(_ context.Context, filter FileFilter) ([]models.File, error) {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	items := make([]models.File, 0)
	for _, file := range m.data.catalog.Files {
		if filter.CourseID != "" && file.CourseID != filter.CourseID {
			continue
		}
		if filter.LecturerID != "" && (file.LecturerID == nil || *file.LecturerID != filter.LecturerID) {
			continue
		}
		if filter.Type != "" && file.Type != filter.Type {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(file.Title), search) {
			continue
		}
		items = append(items, file)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

func (m *Memory) GetFile(_ context.Context, id string) (*models.File, error) {
	for _, file := range m.data.catalog.Files {
		if file.ID == id {
			f := file
			return &f, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.data.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, user := range m.data.users {
		if strings.ToLower(user.Email) == email {
			u := user
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) GetUserByExternalID(_ context.Context, externalID string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, user := range m.data.users {
		if user.ExternalID != nil && *user.ExternalID == externalID {
			u := user
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) InsertUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data.users[user.ID]; ok {
		return ErrDuplicate
	}
	for _, existing := range m.data.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return ErrDuplicate
		}
	}
	m.data.users[user.ID] = *user
	return nil
}

func (m *Memory) SetUserRole(_ context.Context, id, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.data.users[id]
	if !ok {
		return ErrNotFound
	}
	user.Role = role
	m.data.users[id] = user
	return nil
}

func (m *Memory) SetLastLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.data.users[id]
	if !ok {
		return ErrNotFound
	}
	user.LastLoginAt = &at
	m.data.users[id] = user
	return nil
}

func (m *Memory) ListUsers(_ context.Context, filter UserFilter) ([]models.User, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	items := make([]models.User, 0)
	for _, user := range m.data.users {
		if search != "" &&
			!strings.Contains(strings.ToLower(user.Email), search) &&
			!strings.Contains(strings.ToLower(user.DisplayName), search) {
			continue
		}
		items = append(items, user)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].Email < items[j].Email
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	total := len(items)
	if filter.Offset >= total {
		return []models.User{}, total, nil
	}
	items = items[filter.Offset:]
	if filter.Limit > 0 && len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	return items, total, nil
}

func (m *Memory) InsertMediaAsset(_ context.Context, asset *models.MediaAsset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.media[asset.ID] = *asset
	return nil
}

func (m *Memory) GetMediaAsset(_ context.Context, id string) (*models.MediaAsset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	asset, ok := m.data.media[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &asset, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
