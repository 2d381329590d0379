package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"geekshub-backend-go/internal/models"
	"geekshub-backend-go/internal/store"
)

const (
	DefaultPointsPerApproval = 10
	ApprovalReason           = "File Approved"
	MaxBulkIDs               = 100
)

// Actor identifies who performs a transition. Name is copied into the audit
// entry so later renames do not rewrite history.
type Actor struct {
	ID   string
	Name string
}

type BulkResult struct {
	Processed    int
	Skipped      int
	ProcessedIDs []string
	SkippedIDs   []string
}

// Moderation applies review transitions to file requests. Each call runs in
// one store unit of work: the status change, the ledger write and the audit
// entry commit together or not at all.
type Moderation struct {
	store     store.Store
	publisher Publisher
	points    int
	now       func() time.Time
	newID     func() string
}

func NewModeration(st store.Store, publisher Publisher, pointsPerApproval int) *Moderation {
	if pointsPerApproval <= 0 {
		pointsPerApproval = DefaultPointsPerApproval
	}
	return &Moderation{
		store:     st,
		publisher: publisher,
		points:    pointsPerApproval,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

func (m *Moderation) loadRequest(ctx context.Context, tx store.Tx, id string) (*models.FileRequest, error) {
	req, err := tx.GetRequest(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound("File request not found")
	}
	if err != nil {
		return nil, WrapError(err, "load file request")
	}
	return req, nil
}

func (m *Moderation) newEntry(action models.AuditAction, actor Actor, targets []string, meta models.AuditMetadata) *models.AuditLogEntry {
	return &models.AuditLogEntry{
		ID:        m.newID(),
		Timestamp: m.now(),
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Action:    action,
		TargetIDs: targets,
		Metadata:  meta,
	}
}

// award writes the ledger row for req unless one already exists and
// returns the amount recorded for it.
func (m *Moderation) award(ctx context.Context, tx store.Tx, req *models.FileRequest, at time.Time) (int, error) {
	existing, err := tx.TransactionForRequest(ctx, req.ID)
	if err == nil {
		return existing.Amount, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return 0, WrapError(err, "lookup points transaction")
	}
	requestID := req.ID
	err = tx.InsertTransaction(ctx, &models.PointsTransaction{
		ID:        m.newID(),
		UserID:    req.UserID,
		Amount:    m.points,
		Reason:    ApprovalReason,
		CreatedAt: at,
		RequestID: &requestID,
	})
	if errors.Is(err, store.ErrDuplicate) {
		existing, err := tx.TransactionForRequest(ctx, req.ID)
		if err != nil {
			return 0, WrapError(err, "lookup points transaction")
		}
		return existing.Amount, nil
	}
	if err != nil {
		return 0, WrapError(err, "insert points transaction")
	}
	return m.points, nil
}

func (m *Moderation) approvePending(ctx context.Context, tx store.Tx, req *models.FileRequest, actor Actor) (int, error) {
	now := m.now()
	points, err := m.award(ctx, tx, req, now)
	if err != nil {
		return 0, err
	}
	reviewer := actor.ID
	req.Status = models.StatusApproved
	req.ReviewedAt = &now
	req.ReviewedByID = &reviewer
	req.PointsAwarded = &points
	req.RejectionReason = nil
	req.RejectionNote = nil
	if err := tx.UpdateRequest(ctx, req); err != nil {
		return 0, WrapError(err, "update file request")
	}
	return points, nil
}

func (m *Moderation) rejectPending(ctx context.Context, tx store.Tx, req *models.FileRequest, actor Actor, reason models.RejectReason, note *string) error {
	now := m.now()
	reviewer := actor.ID
	req.Status = models.StatusRejected
	req.ReviewedAt = &now
	req.ReviewedByID = &reviewer
	req.PointsAwarded = nil
	req.RejectionReason = &reason
	req.RejectionNote = note
	return WrapError(tx.UpdateRequest(ctx, req), "update file request")
}

func (m *Moderation) publish(ctx context.Context, entry *models.AuditLogEntry, requests []models.FileRequest) {
	if entry == nil || m.publisher == nil {
		return
	}
	m.publisher.Publish(ctx, ModerationEvent{Entry: *entry, Requests: requests})
}

// Approve moves a pending request to approved and pays the uploader once.
// Approving an already approved request succeeds without side effects.
func (m *Moderation) Approve(ctx context.Context, id string, actor Actor) (*models.FileRequest, error) {
	var result *models.FileRequest
	var entry *models.AuditLogEntry
	err := m.store.WithTx(ctx, func(tx store.Tx) error {
		req, err := m.loadRequest(ctx, tx, id)
		if err != nil {
			return err
		}
		switch req.Status {
		case models.StatusApproved:
			result = req
			return nil
		case models.StatusPending:
		default:
			return ErrConflict(fmt.Sprintf("Cannot approve a %s request", req.Status))
		}
		points, err := m.approvePending(ctx, tx, req, actor)
		if err != nil {
			return err
		}
		entry = m.newEntry(models.ActionApprove, actor, []string{req.ID}, models.AuditMetadata{
			PreviousStatus: models.StatusPending,
			NewStatus:      models.StatusApproved,
			PointsAwarded:  points,
		})
		if err := tx.AppendAudit(ctx, entry); err != nil {
			return WrapError(err, "append audit entry")
		}
		result = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.publish(ctx, entry, []models.FileRequest{*result})
	return result, nil
}

func validReason(reason models.RejectReason) error {
	if !reason.Valid() {
		return ErrValidation(map[string]string{"reason": "must be one of DUPLICATE, OUTDATED, INCORRECT_COURSE, BAD_QUALITY, OTHER"})
	}
	return nil
}

func notePtr(note string) *string {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil
	}
	return &note
}

// Reject moves a pending request to rejected with a reason and optional note.
func (m *Moderation) Reject(ctx context.Context, id string, actor Actor, reason models.RejectReason, note string) (*models.FileRequest, error) {
	if err := validReason(reason); err != nil {
		return nil, err
	}
	var result *models.FileRequest
	var entry *models.AuditLogEntry
	err := m.store.WithTx(ctx, func(tx store.Tx) error {
		req, err := m.loadRequest(ctx, tx, id)
		if err != nil {
			return err
		}
		if req.Status != models.StatusPending {
			return ErrConflict(fmt.Sprintf("Cannot reject a %s request", req.Status))
		}
		if err := m.rejectPending(ctx, tx, req, actor, reason, notePtr(note)); err != nil {
			return err
		}
		entry = m.newEntry(models.ActionReject, actor, []string{req.ID}, models.AuditMetadata{
			PreviousStatus: models.StatusPending,
			NewStatus:      models.StatusRejected,
			Reason:         reason,
			Note:           strings.TrimSpace(note),
		})
		if err := tx.AppendAudit(ctx, entry); err != nil {
			return WrapError(err, "append audit entry")
		}
		result = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.publish(ctx, entry, []models.FileRequest{*result})
	return result, nil
}

func checkBulkIDs(ids []string) error {
	if len(ids) == 0 {
		return ErrValidation(map[string]string{"ids": "at least one id is required"})
	}
	if len(ids) > MaxBulkIDs {
		return ErrValidation(map[string]string{"ids": fmt.Sprintf("at most %d ids per batch", MaxBulkIDs)})
	}
	return nil
}

// bulk applies apply to every pending id once. Missing, non-pending and
// repeated ids are skipped. Rows are locked in sorted id order so concurrent
// batches over overlapping ids cannot deadlock; results keep the caller's order.
func (m *Moderation) bulk(ctx context.Context, ids []string, apply func(tx store.Tx, req *models.FileRequest) error,
	buildEntry func(result BulkResult) *models.AuditLogEntry) (BulkResult, error) {
	lockOrder := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			lockOrder = append(lockOrder, id)
		}
	}
	sort.Strings(lockOrder)

	var result BulkResult
	var entry *models.AuditLogEntry
	var changed []models.FileRequest
	err := m.store.WithTx(ctx, func(tx store.Tx) error {
		result = BulkResult{ProcessedIDs: []string{}, SkippedIDs: []string{}}
		changed = nil
		locked := make(map[string]*models.FileRequest, len(lockOrder))
		for _, id := range lockOrder {
			req, err := tx.GetRequest(ctx, id)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return WrapError(err, "load file request")
			}
			locked[id] = req
		}

		done := make(map[string]bool, len(ids))
		for _, id := range ids {
			req := locked[id]
			if done[id] || req == nil || req.Status != models.StatusPending {
				result.SkippedIDs = append(result.SkippedIDs, id)
				continue
			}
			done[id] = true
			if err := apply(tx, req); err != nil {
				return err
			}
			result.ProcessedIDs = append(result.ProcessedIDs, id)
			changed = append(changed, *req)
		}
		result.Processed = len(result.ProcessedIDs)
		result.Skipped = len(result.SkippedIDs)
		if result.Processed == 0 {
			return nil
		}
		entry = buildEntry(result)
		return WrapError(tx.AppendAudit(ctx, entry), "append audit entry")
	})
	if err != nil {
		return BulkResult{}, err
	}
	m.publish(ctx, entry, changed)
	return result, nil
}

func (m *Moderation) BulkApprove(ctx context.Context, ids []string, actor Actor) (BulkResult, error) {
	if err := checkBulkIDs(ids); err != nil {
		return BulkResult{}, err
	}
	total := 0
	return m.bulk(ctx, ids, func(tx store.Tx, req *models.FileRequest) error {
		points, err := m.approvePending(ctx, tx, req, actor)
		total += points
		return err
	}, func(result BulkResult) *models.AuditLogEntry {
		return m.newEntry(models.ActionBulkApprove, actor, result.ProcessedIDs, models.AuditMetadata{
			PreviousStatus: models.StatusPending,
			NewStatus:      models.StatusApproved,
			PointsAwarded:  total,
			Processed:      result.Processed,
			Skipped:        result.Skipped,
			SkippedIDs:     result.SkippedIDs,
		})
	})
}

func (m *Moderation) BulkReject(ctx context.Context, ids []string, actor Actor, reason models.RejectReason, note string) (BulkResult, error) {
	if err := checkBulkIDs(ids); err != nil {
		return BulkResult{}, err
	}
	if err := validReason(reason); err != nil {
		return BulkResult{}, err
	}
	return m.bulk(ctx, ids, func(tx store.Tx, req *models.FileRequest) error {
		return m.rejectPending(ctx, tx, req, actor, reason, notePtr(note))
	}, func(result BulkResult) *models.AuditLogEntry {
		return m.newEntry(models.ActionBulkReject, actor, result.ProcessedIDs, models.AuditMetadata{
			PreviousStatus: models.StatusPending,
			NewStatus:      models.StatusRejected,
			Reason:         reason,
			Note:           strings.TrimSpace(note),
			Processed:      result.Processed,
			Skipped:        result.Skipped,
			SkippedIDs:     result.SkippedIDs,
		})
	})
}

// UndoApprove returns an approved request to pending and removes the points
// it paid. The audit entry records the removed amount as a negative delta.
func (m *Moderation) UndoApprove(ctx context.Context, id string, actor Actor) (*models.FileRequest, error) {
	return m.undo(ctx, id, actor, models.StatusApproved, models.ActionUndoApprove, func(tx store.Tx, req *models.FileRequest) (int, error) {
		removed := 0
		if existing, err := tx.TransactionForRequest(ctx, req.ID); err == nil {
			removed = existing.Amount
		} else if !errors.Is(err, store.ErrNotFound) {
			return 0, WrapError(err, "lookup points transaction")
		}
		if _, err := tx.DeleteTransactionForRequest(ctx, req.ID); err != nil {
			return 0, WrapError(err, "delete points transaction")
		}
		return -removed, nil
	})
}

func (m *Moderation) UndoReject(ctx context.Context, id string, actor Actor) (*models.FileRequest, error) {
	return m.undo(ctx, id, actor, models.StatusRejected, models.ActionUndoReject, nil)
}

func (m *Moderation) undo(ctx context.Context, id string, actor Actor, from models.RequestStatus, action models.AuditAction,
	revert func(tx store.Tx, req *models.FileRequest) (int, error)) (*models.FileRequest, error) {
	var result *models.FileRequest
	var entry *models.AuditLogEntry
	err := m.store.WithTx(ctx, func(tx store.Tx) error {
		req, err := m.loadRequest(ctx, tx, id)
		if err != nil {
			return err
		}
		if req.Status != from {
			return ErrConflict(fmt.Sprintf("Request is %s, expected %s", req.Status, from))
		}
		delta := 0
		if revert != nil {
			if delta, err = revert(tx, req); err != nil {
				return err
			}
		}
		req.Status = models.StatusPending
		req.ClearReview()
		if err := tx.UpdateRequest(ctx, req); err != nil {
			return WrapError(err, "update file request")
		}
		entry = m.newEntry(action, actor, []string{req.ID}, models.AuditMetadata{
			PreviousStatus: from,
			NewStatus:      models.StatusPending,
			PointsAwarded:  delta,
		})
		if err := tx.AppendAudit(ctx, entry); err != nil {
			return WrapError(err, "append audit entry")
		}
		result = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.publish(ctx, entry, []models.FileRequest{*result})
	return result, nil
}

// Withdraw lets the owner pull back a request that has not been reviewed.
func (m *Moderation) Withdraw(ctx context.Context, id string, owner Actor) (*models.FileRequest, error) {
	var result *models.FileRequest
	var entry *models.AuditLogEntry
	err := m.store.WithTx(ctx, func(tx store.Tx) error {
		req, err := m.loadRequest(ctx, tx, id)
		if err != nil {
			return err
		}
		if req.UserID != owner.ID {
			return ErrForbidden("Only the uploader can withdraw this request")
		}
		if req.Status != models.StatusPending {
			return ErrConflict(fmt.Sprintf("Cannot withdraw a %s request", req.Status))
		}
		req.Status = models.StatusWithdrawn
		if err := tx.UpdateRequest(ctx, req); err != nil {
			return WrapError(err, "update file request")
		}
		entry = m.newEntry(models.ActionWithdraw, owner, []string{req.ID}, models.AuditMetadata{
			PreviousStatus: models.StatusPending,
			NewStatus:      models.StatusWithdrawn,
		})
		if err := tx.AppendAudit(ctx, entry); err != nil {
			return WrapError(err, "append audit entry")
		}
		result = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.publish(ctx, entry, []models.FileRequest{*result})
	return result, nil
}
