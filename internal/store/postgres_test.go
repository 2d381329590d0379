package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geekshub-backend-go/internal/models"
)

func newMockPostgres(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgres(sqlx.NewDb(db, "pgx"), 16, time.Minute), mock
}

var requestCols = []string{"id", "user_id", "uploader_name", "course_id", "lecturer_id", "lecturer_name", "type", "title", "notes",
	"storage_path", "status", "created_at", "reviewed_at", "reviewed_by_id", "points_awarded", "rejection_reason", "rejection_note"}

func pendingRow(id string) *sqlmock.Rows {
	return sqlmock.NewRows(requestCols).AddRow(id, "u1", "John Doe", "cs101", nil, "Dr. Smith", "Notes", "x.pdf", nil,
		nil, "pending", time.Now(), nil, nil, nil, nil, nil)
}

func TestPostgres_GetRequestNotFound(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectQuery(`SELECT .* FROM file_requests WHERE id = \$1$`).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := p.GetRequest(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_WithTxLocksAndCommits(t *testing.T) {
	p, mock := newMockPostgres(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM file_requests WHERE id = \$1 FOR UPDATE`).WithArgs("req1").WillReturnRows(pendingRow("req1"))
	mock.ExpectExec(`INSERT INTO points_transactions .* ON CONFLICT \(request_id\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE file_requests`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO audit_logs`).
		WithArgs("a1", sqlmock.AnyArg(), "admin1", "Admin", "APPROVE", `["req1"]`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := p.WithTx(ctx, func(tx Tx) error {
		req, err := tx.GetRequest(ctx, "req1")
		if err != nil {
			return err
		}
		assert.Equal(t, models.StatusPending, req.Status)
		assert.Equal(t, models.MaterialNotes, req.Type)
		rid := req.ID
		if err := tx.InsertTransaction(ctx, &models.PointsTransaction{ID: "t1", UserID: "u1", Amount: 10, RequestID: &rid}); err != nil {
			return err
		}
		req.Status = models.StatusApproved
		if err := tx.UpdateRequest(ctx, req); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, &models.AuditLogEntry{ID: "a1", ActorID: "admin1", ActorName: "Admin", Action: models.ActionApprove, TargetIDs: []string{"req1"}})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_DuplicateLedgerRowRollsBack(t *testing.T) {
	p, mock := newMockPostgres(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO points_transactions`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := p.WithTx(ctx, func(tx Tx) error {
		rid := "req1"
		return tx.InsertTransaction(ctx, &models.PointsTransaction{ID: "t2", UserID: "u1", Amount: 10, RequestID: &rid})
	})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateMissingRequest(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectExec(`UPDATE file_requests`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := p.UpdateRequest(context.Background(), &models.FileRequest{ID: "nope"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgres_GetCourseUsesCache(t *testing.T) {
	p, mock := newMockPostgres(t)
	rows := sqlmock.NewRows([]string{"id", "code", "name", "term", "color", "major_id", "semester_id", "year_id"}).
		AddRow("cs101", "CS101", "Introduction to Algorithms", "Fall 2024", "c", "cs", "fall2024", "1")
	mock.ExpectQuery(`SELECT .* FROM courses WHERE id = \$1`).WithArgs("cs101").WillReturnRows(rows)

	for i := 0; i < 3; i++ {
		course, err := p.GetCourse(context.Background(), "cs101")
		require.NoError(t, err)
		assert.Equal(t, "CS101", course.Code)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListAuditDecodesJSON(t *testing.T) {
	p, mock := newMockPostgres(t)
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audit_logs WHERE action = \$1 AND target_ids @> jsonb_build_array\(\$2::text\)`).
		WithArgs("BULK_APPROVE", "req1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`FROM audit_logs WHERE .* ORDER BY created_at DESC, seq DESC\s+LIMIT \$3 OFFSET \$4`).
		WithArgs("BULK_APPROVE", "req1", DefaultAuditLimit, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "actor_id", "actor_name", "action", "target_ids", "metadata"}).
			AddRow("a1", ts, "admin1", "Admin", "BULK_APPROVE", []byte(`["req1","req5"]`), []byte(`{"processed":2,"skipped":1,"pointsAwarded":20}`)))

	items, total, err := p.ListAudit(context.Background(), AuditFilter{Action: models.ActionBulkApprove, TargetID: "req1"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, []string{"req1", "req5"}, items[0].TargetIDs)
	assert.Equal(t, 2, items[0].Metadata.Processed)
	assert.Equal(t, 20, items[0].Metadata.PointsAwarded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertUserDuplicate(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectExec(`INSERT INTO users .* ON CONFLICT DO NOTHING`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := p.InsertUser(context.Background(), &models.User{ID: "u1", Email: "a@x.test"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestPostgres_QueryErrorsAreWrapped(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectQuery(`FROM points_transactions WHERE user_id = \$1`).WillReturnError(errors.New("connection reset"))

	_, err := p.ListTransactions(context.Background(), "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list points transactions: connection reset")
}
