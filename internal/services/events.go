package services

import (
	"context"
	"log/slog"
	"time"

	"geekshub-backend-go/internal/audit"
	"geekshub-backend-go/internal/models"
	"geekshub-backend-go/internal/safego"
	"geekshub-backend-go/internal/telemetry"
)

// ModerationEvent describes a committed transition. Requests hold the
// post-commit state of every request the entry targets.
type ModerationEvent struct {
	Entry    models.AuditLogEntry
	Requests []models.FileRequest
}

// Publisher receives committed transitions. Implementations must not block.
type Publisher interface {
	Publish(ctx context.Context, event ModerationEvent)
}

type UserGetter interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// Dispatcher runs the after-commit side effects of a transition: audit
// shipping, dashboard broadcast, uploader notification and metrics. Any of
// its collaborators may be nil.
type Dispatcher struct {
	Shipper  audit.Shipper
	Hub      *Hub
	Notifier Notifier
	Users    UserGetter
}

type moderationMessage struct {
	ID        string               `json:"id"`
	Timestamp time.Time            `json:"timestamp"`
	Action    models.AuditAction   `json:"action"`
	ActorID   string               `json:"actorId"`
	ActorName string               `json:"actorName"`
	TargetIDs []string             `json:"targetIds"`
	Metadata  models.AuditMetadata `json:"metadata"`
}

func (d *Dispatcher) Publish(ctx context.Context, event ModerationEvent) {
	entry := event.Entry
	telemetry.ModerationDecisionsTotal.WithLabelValues(string(entry.Action)).Add(float64(len(entry.TargetIDs)))
	if entry.Metadata.PointsAwarded > 0 {
		telemetry.PointsAwardedTotal.Add(float64(entry.Metadata.PointsAwarded))
	}

	requestID := telemetry.RequestID(ctx)
	bg := context.WithoutCancel(ctx)

	if d.Shipper != nil {
		wire := audit.FromModel(entry, requestID)
		safego.Go("audit-ship", func() {
			if err := d.Shipper.Ship(bg, wire); err != nil {
				telemetry.AuditShipFailuresTotal.Inc()
			}
		})
	}

	if d.Hub != nil {
		d.Hub.Broadcast(Event{Type: EventModeration, Data: moderationMessage{
			ID:        entry.ID,
			Timestamp: entry.Timestamp,
			Action:    entry.Action,
			ActorID:   entry.ActorID,
			ActorName: entry.ActorName,
			TargetIDs: entry.TargetIDs,
			Metadata:  entry.Metadata,
		}})
	}

	if d.Notifier != nil && d.Users != nil && len(event.Requests) > 0 {
		requests := event.Requests
		safego.Go("notify-uploaders", func() {
			for _, req := range requests {
				user, err := d.Users.GetUser(bg, req.UserID)
				if err != nil {
					slog.Warn("notification skipped, uploader lookup failed", "request", req.ID, "error", err)
					telemetry.NotificationFailuresTotal.Inc()
					continue
				}
				if err := d.Notifier.NotifyDecision(bg, *user, req, entry.Action); err != nil {
					slog.Warn("notification failed", "request", req.ID, "error", err)
					telemetry.NotificationFailuresTotal.Inc()
				}
			}
		})
	}
}
