package services

import (
	"context"

	"geekshub-backend-go/internal/models"
	"geekshub-backend-go/internal/store"
)

type AuditPage struct {
	Items  []models.AuditLogEntry
	Total  int
	Limit  int
	Offset int
}

type AuditLog struct {
	store store.Store
}

func NewAuditLog(st store.Store) *AuditLog {
	return &AuditLog{store: st}
}

// List returns entries newest first. An unknown action is a 400.
func (a *AuditLog) List(ctx context.Context, filter store.AuditFilter) (AuditPage, error) {
	if filter.Action != "" && !filter.Action.Valid() {
		return AuditPage{}, ErrValidation(map[string]string{"action": "unknown audit action"})
	}
	filter = store.NormalizeAuditPage(filter)
	items, total, err := a.store.ListAudit(ctx, filter)
	if err != nil {
		return AuditPage{}, WrapError(err, "list audit logs")
	}
	return AuditPage{Items: items, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}
