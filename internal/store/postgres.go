package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"geekshub-backend-go/internal/models"
	"geekshub-backend-go/internal/telemetry"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

const requestColumns = `id, user_id, uploader_name, course_id, lecturer_id, lecturer_name, type, title, notes,
storage_path, status, created_at, reviewed_at, reviewed_by_id, points_awarded, rejection_reason, rejection_note`

// Postgres is the sqlx-backed Store. Course lookups go through an expiring LRU.
type Postgres struct {
	pgConn
	db      *sqlx.DB
	courses *expirable.LRU[string, models.Course]
}

var _ Store = (*Postgres)(nil)

// pgConn runs statements against either the pool or an open transaction.
type pgConn struct {
	q       sqlx.ExtContext
	lockRow bool
}

func NewPostgres(db *sqlx.DB, cacheSize int, cacheTTL time.Duration) *Postgres {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	return &Postgres{
		pgConn:  pgConn{q: db},
		db:      db,
		courses: expirable.NewLRU[string, models.Course](cacheSize, nil, cacheTTL),
	}
}

func (p *Postgres) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	if err := fn(&pgConn{q: tx, lockRow: true}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "commit tx")
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (c *pgConn) GetRequest(ctx context.Context, id string) (*models.FileRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM file_requests WHERE id = $1`
	if c.lockRow {
		query += ` FOR UPDATE`
	}
	var req models.FileRequest
	if err := sqlx.GetContext(ctx, c.q, &req, query, id); err != nil {
		return nil, notFound(err)
	}
	return &req, nil
}

func (c *pgConn) InsertRequest(ctx context.Context, req *models.FileRequest) error {
	_, err := sqlx.NamedExecContext(ctx, c.q, `
INSERT INTO file_requests (`+requestColumns+`)
VALUES (:id, :user_id, :uploader_name, :course_id, :lecturer_id, :lecturer_name, :type, :title, :notes,
        :storage_path, :status, :created_at, :reviewed_at, :reviewed_by_id, :points_awarded, :rejection_reason, :rejection_note)
`, req)
	return errors.Wrap(err, "insert file request")
}

func (c *pgConn) UpdateRequest(ctx context.Context, req *models.FileRequest) error {
	res, err := sqlx.NamedExecContext(ctx, c.q, `
UPDATE file_requests
SET status = :status, reviewed_at = :reviewed_at, reviewed_by_id = :reviewed_by_id,
    points_awarded = :points_awarded, rejection_reason = :rejection_reason, rejection_note = :rejection_note
WHERE id = :id
`, req)
	if err != nil {
		return errors.Wrap(err, "update file request")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *pgConn) TransactionForRequest(ctx context.Context, requestID string) (*models.PointsTransaction, error) {
	var tx models.PointsTransaction
	err := sqlx.GetContext(ctx, c.q, &tx, `
SELECT id, user_id, amount, reason, created_at, request_id
FROM points_transactions WHERE request_id = $1`, requestID)
	if err != nil {
		return nil, notFound(err)
	}
	return &tx, nil
}

func (c *pgConn) InsertTransaction(ctx context.Context, tx *models.PointsTransaction) error {
	res, err := c.q.ExecContext(ctx, `
INSERT INTO points_transactions (id, user_id, amount, reason, created_at, request_id)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (request_id) DO NOTHING`, tx.ID, tx.UserID, tx.Amount, tx.Reason, tx.CreatedAt, tx.RequestID)
	if err != nil {
		return errors.Wrap(err, "insert points transaction")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDuplicate
	}
	return nil
}

func (c *pgConn) DeleteTransactionForRequest(ctx context.Context, requestID string) (bool, error) {
	res, err := c.q.ExecContext(ctx, `DELETE FROM points_transactions WHERE request_id = $1`, requestID)
	if err != nil {
		return false, errors.Wrap(err, "delete points transaction")
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (c *pgConn) AppendAudit(ctx context.Context, entry *models.AuditLogEntry) error {
	targets, err := json.Marshal(entry.TargetIDs)
	if err != nil {
		return err
	}
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return err
	}
	_, err = c.q.ExecContext(ctx, `
INSERT INTO audit_logs (id, created_at, actor_id, actor_name, action, target_ids, metadata)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		entry.ID, entry.Timestamp, entry.ActorID, entry.ActorName, string(entry.Action), string(targets), string(metadata))
	return errors.Wrap(err, "insert audit log")
}

func (p *Postgres) ListRequests(ctx context.Context, filter RequestFilter) ([]models.FileRequest, error) {
	where := []string{}
	args := []interface{}{}
	add := func(cond string, value interface{}) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.ExcludeStatus != "" {
		add("status <> $%d", string(filter.ExcludeStatus))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(lower(title) LIKE $%d OR lower(uploader_name) LIKE $%d OR lower(course_id) LIKE $%d)", n, n, n))
	}
	query := `SELECT ` + requestColumns + ` FROM file_requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	items := []models.FileRequest{}
	if err := p.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, errors.Wrap(err, "list file requests")
	}
	return items, nil
}

func (p *Postgres) RequestStats(ctx context.Context, since time.Time) (models.RequestStats, error) {
	var stats models.RequestStats
	err := p.db.GetContext(ctx, &stats, `
SELECT
  COUNT(*) FILTER (WHERE status = 'pending') AS pending,
  COUNT(*) FILTER (WHERE status = 'approved' AND reviewed_at >= $1) AS approved_today,
  COUNT(*) FILTER (WHERE status = 'rejected' AND reviewed_at >= $1) AS rejected_today,
  COUNT(*) AS total
FROM file_requests`, since)
	return stats, errors.Wrap(err, "request stats")
}

func (p *Postgres) ListTransactions(ctx context.Context, userID string) ([]models.PointsTransaction, error) {
	items := []models.PointsTransaction{}
	err := p.db.SelectContext(ctx, &items, `
SELECT id, user_id, amount, reason, created_at, request_id
FROM points_transactions WHERE user_id = $1
ORDER BY created_at DESC, id`, userID)
	return items, errors.Wrap(err, "list points transactions")
}

func (p *Postgres) TopContributors(ctx context.Context, limit int) ([]models.Contributor, error) {
	items := []models.Contributor{}
	err := p.db.SelectContext(ctx, &items, `
SELECT u.id, u.display_name AS name, u.major, COALESCE(SUM(t.amount), 0) AS points
FROM points_transactions t
JOIN users u ON u.id = t.user_id
GROUP BY u.id, u.display_name, u.major
ORDER BY points DESC, name
LIMIT $1`, limit)
	return items, errors.Wrap(err, "top contributors")
}

type auditRow struct {
	ID        string    `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	ActorID   string    `db:"actor_id"`
	ActorName string    `db:"actor_name"`
	Action    string    `db:"action"`
	TargetIDs []byte    `db:"target_ids"`
	Metadata  []byte    `db:"metadata"`
}

func (p *Postgres) ListAudit(ctx context.Context, filter AuditFilter) ([]models.AuditLogEntry, int, error) {
	filter = NormalizeAuditPage(filter)
	where := []string{}
	args := []interface{}{}
	argIdx := 1
	if filter.Action != "" {
		where = append(where, fmt.Sprintf("action = $%d", argIdx))
		args = append(args, string(filter.Action))
		argIdx++
	}
	if filter.ActorID != "" {
		where = append(where, fmt.Sprintf("actor_id = $%d", argIdx))
		args = append(args, filter.ActorID)
		argIdx++
	}
	if filter.TargetID != "" {
		where = append(where, fmt.Sprintf("target_ids @> jsonb_build_array($%d::text)", argIdx))
		args = append(args, filter.TargetID)
		argIdx++
	}
	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := p.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM audit_logs"+whereClause, args...); err != nil {
		return nil, 0, errors.Wrap(err, "count audit logs")
	}

	query := fmt.Sprintf(`
SELECT id, created_at, actor_id, actor_name, action, target_ids, metadata
FROM audit_logs%s
ORDER BY created_at DESC, seq DESC
LIMIT $%d OFFSET $%d`, whereClause, argIdx, argIdx+1)
	args = append(args, filter.Limit, filter.Offset)
	rows := []auditRow{}
	if err := p.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, errors.Wrap(err, "list audit logs")
	}
	items := make([]models.AuditLogEntry, 0, len(rows))
	for _, row := range rows {
		entry := models.AuditLogEntry{
			ID:        row.ID,
			Timestamp: row.CreatedAt,
			ActorID:   row.ActorID,
			ActorName: row.ActorName,
			Action:    models.AuditAction(row.Action),
		}
		if len(row.TargetIDs) > 0 {
			if err := json.Unmarshal(row.TargetIDs, &entry.TargetIDs); err != nil {
				return nil, 0, errors.Wrapf(err, "decode target ids of %s", row.ID)
			}
		}
		if len(row.Metadata) > 0 {
			if err := json.Unmarshal(row.Metadata, &entry.Metadata); err != nil {
				return nil, 0, errors.Wrapf(err, "decode metadata of %s", row.ID)
			}
		}
		items = append(items, entry)
	}
	return items, total, nil
}

func (p *Postgres) ListMajors(ctx context.Context) ([]models.Major, error) {
	items := []models.Major{}
	err := p.db.SelectContext(ctx, &items, `SELECT id, name, slug FROM majors ORDER BY name`)
	return items, errors.Wrap(err, "list majors")
}

func (p *Postgres) ListYears(ctx context.Context) ([]models.AcademicYear, error) {
	items := []models.AcademicYear{}
	err := p.db.SelectContext(ctx, &items, `SELECT id, label FROM academic_years ORDER BY id`)
	return items, errors.Wrap(err, "list years")
}

func (p *Postgres) ListSemesters(ctx context.Context) ([]models.Semester, error) {
	items := []models.Semester{}
	err := p.db.SelectContext(ctx, &items, `SELECT id, name FROM semesters ORDER BY sort_order`)
	return items, errors.Wrap(err, "list semesters")
}

const courseColumns = `id, code, name, term, color, major_id, semester_id, year_id`

func (p *Postgres) ListCourses(ctx context.Context, filter CourseFilter) ([]models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses
WHERE ($1 = '' OR major_id = $1) AND ($2 = '' OR semester_id = $2) AND ($3 = '' OR year_id = $3)
ORDER BY code`
	items := []models.Course{}
	if err := p.db.SelectContext(ctx, &items, query, filter.MajorID, filter.SemesterID, filter.YearID); err != nil {
		return nil, errors.Wrap(err, "list courses")
	}
	for _, course := range items {
		p.courses.Add(course.ID, course)
	}
	return items, nil
}

func (p *Postgres) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	if course, ok := p.courses.Get(id); ok {
		telemetry.CatalogCacheHitsTotal.Inc()
		return &course, nil
	}
	telemetry.CatalogCacheMissesTotal.Inc()
	var course models.Course
	if err := p.db.GetContext(ctx, &course, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id); err != nil {
		return nil, notFound(err)
	}
	p.courses.Add(course.ID, course)
	return &course, nil
}

func (p *Postgres) ListLecturers(ctx context.Context, courseID string) ([]models.Lecturer, error) {
	items := []models.Lecturer{}
	var err error
	if courseID == "" {
		err = p.db.SelectContext(ctx, &items, `SELECT id, name FROM lecturers ORDER BY name`)
	} else {
		err = p.db.SelectContext(ctx, &items, `
SELECT l.id, l.name FROM lecturers l
JOIN course_lecturers cl ON cl.lecturer_id = l.id
WHERE cl.course_id = $1
ORDER BY l.name`, courseID)
	}
	return items, errors.Wrap(err, "list lecturers")
}

func (p *Postgres) GetLecturer(ctx context.Context, id string) (*models.Lecturer, error) {
	var lecturer models.Lecturer
	if err := p.db.GetContext(ctx, &lecturer, `SELECT id, name FROM lecturers WHERE id = $1`, id); err != nil {
		return nil, notFound(err)
	}
	return &lecturer, nil
}

const fileColumns = `id, title, type, lecturer_id, lecturer_name, course_id, size_bytes, points, status, created_at`

func (p *Postgres) ListFiles(ctx context.Context, filter FileFilter) ([]models.File, error) {
	search := ""
	if term := strings.TrimSpace(filter.Search); term != "" {
		search = "%" + strings.ToLower(term) + "%"
	}
	items := []models.File{}
	err := p.db.SelectContext(ctx, &items, `SELECT `+fileColumns+` FROM files
WHERE ($1 = '' OR course_id = $1)
  AND ($2 = '' OR lecturer_id = $2)
  AND ($3 = '' OR type = $3)
  AND ($4 = '' OR lower(title) LIKE $4)
ORDER BY created_at DESC`, filter.CourseID, filter.LecturerID, string(filter.Type), search)
	return items, errors.Wrap(err, "list files")
}

func (p *Postgres) GetFile(ctx context.Context, id string) (*models.File, error) {
	var file models.File
	if err := p.db.GetContext(ctx, &file, `SELECT `+fileColumns+` FROM files WHERE id = $1`, id); err != nil {
		return nil, notFound(err)
	}
	return &file, nil
}

const userColumns = `id, email, display_name, password_hash, role, external_id, major, created_at, last_login_at`

func (p *Postgres) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := p.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = $1`, id); err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := p.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE lower(email) = $1`,
		strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (p *Postgres) GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	var user models.User
	if err := p.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE external_id = $1`, externalID); err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (p *Postgres) InsertUser(ctx context.Context, user *models.User) error {
	res, err := p.db.NamedExecContext(ctx, `
INSERT INTO users (`+userColumns+`)
VALUES (:id, :email, :display_name, :password_hash, :role, :external_id, :major, :created_at, :last_login_at)
ON CONFLICT DO NOTHING`, user)
	if err != nil {
		return errors.Wrap(err, "insert user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDuplicate
	}
	return nil
}

func (p *Postgres) SetUserRole(ctx context.Context, id, role string) error {
	res, err := p.db.ExecContext(ctx, `UPDATE users SET role = $1 WHERE id = $2`, role, id)
	if err != nil {
		return errors.Wrap(err, "set user role")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := p.db.ExecContext(ctx, `UPDATE users SET last_login_at = $1 WHERE id = $2`, at, id)
	return errors.Wrap(err, "set last login")
}

func (p *Postgres) ListUsers(ctx context.Context, filter UserFilter) ([]models.User, int, error) {
	where := ""
	args := []interface{}{}
	if search := strings.TrimSpace(filter.Search); search != "" {
		where = " WHERE lower(email) LIKE $1 OR lower(display_name) LIKE $1"
		args = append(args, "%"+strings.ToLower(search)+"%")
	}
	var total int
	if err := p.db.GetContext(ctx, &total, "SELECT count(*) FROM users"+where, args...); err != nil {
		return nil, 0, errors.Wrap(err, "count users")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(`SELECT `+userColumns+` FROM users%s ORDER BY created_at DESC, email LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args))
	items := []models.User{}
	if err := p.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, errors.Wrap(err, "list users")
	}
	return items, total, nil
}

func (p *Postgres) InsertMediaAsset(ctx context.Context, asset *models.MediaAsset) error {
	_, err := p.db.NamedExecContext(ctx, `
INSERT INTO media_assets (id, owner_id, filename, content_type, size_bytes, sha256, storage_key, created_at)
VALUES (:id, :owner_id, :filename, :content_type, :size_bytes, :sha256, :storage_key, :created_at)`, asset)
	return errors.Wrap(err, "insert media asset")
}

func (p *Postgres) GetMediaAsset(ctx context.Context, id string) (*models.MediaAsset, error) {
	var asset models.MediaAsset
	err := p.db.GetContext(ctx, &asset, `
SELECT id, owner_id, filename, content_type, size_bytes, sha256, storage_key, created_at
FROM media_assets WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &asset, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
