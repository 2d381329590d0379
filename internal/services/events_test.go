package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geekshub-backend-go/internal/audit"
	"geekshub-backend-go/internal/models"
	"geekshub-backend-go/internal/telemetry"
)

type fakeShipper struct {
	mu      sync.Mutex
	entries []*audit.LogEntry
}

func (f *fakeShipper) Ship(_ context.Context, entry *audit.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeShipper) Close() error { return nil }

func (f *fakeShipper) shipped() []*audit.LogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*audit.LogEntry(nil), f.entries...)
}

type sentNotice struct {
	email   string
	request string
	action  models.AuditAction
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotice
}

func (f *fakeNotifier) NotifyDecision(_ context.Context, user models.User, req models.FileRequest, action models.AuditAction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNotice{email: user.Email, request: req.ID, action: action})
	return nil
}

func (f *fakeNotifier) notices() []sentNotice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentNotice(nil), f.sent...)
}

func TestDispatcher_ShipsAndNotifiesAfterCommit(t *testing.T) {
	st := newTestStore(t)
	shipper := &fakeShipper{}
	notifier := &fakeNotifier{}
	dispatcher := &Dispatcher{Shipper: shipper, Notifier: notifier, Users: st}
	m := NewModeration(st, dispatcher, 10)

	ctx := telemetry.WithRequestID(context.Background(), "req-abc")
	res, err := m.BulkApprove(ctx, []string{"req1", "req5"}, admin)
	require.NoError(t, err)
	require.Equal(t, 2, res.Processed)

	require.Eventually(t, func() bool { return len(shipper.shipped()) == 1 }, time.Second, 5*time.Millisecond)
	entry := shipper.shipped()[0]
	assert.Equal(t, string(models.ActionBulkApprove), entry.Action)
	assert.Equal(t, "req-abc", entry.RequestID)
	assert.Equal(t, []string{"req1", "req5"}, entry.TargetIDs)

	require.Eventually(t, func() bool { return len(notifier.notices()) == 2 }, time.Second, 5*time.Millisecond)
	emails := []string{}
	for _, n := range notifier.notices() {
		emails = append(emails, n.email)
		assert.Equal(t, models.ActionBulkApprove, n.action)
	}
	assert.ElementsMatch(t, []string{"john.doe@geekshub.local", "jane.smith@geekshub.local"}, emails)
}

func TestDispatcher_BroadcastsToHub(t *testing.T) {
	hub := NewHub()
	dispatcher := &Dispatcher{Hub: hub}
	dispatcher.Publish(context.Background(), ModerationEvent{Entry: models.AuditLogEntry{
		ID:        "e1",
		Action:    models.ActionReject,
		TargetIDs: []string{"req1"},
	}})

	select {
	case event := <-hub.ch:
		assert.Equal(t, EventModeration, event.Type)
		msg, ok := event.Data.(moderationMessage)
		require.True(t, ok)
		assert.Equal(t, "e1", msg.ID)
	default:
		t.Fatal("expected a queued hub event")
	}
}

func TestDispatcher_NoCollaborators(t *testing.T) {
	assert.NotPanics(t, func() {
		(&Dispatcher{}).Publish(context.Background(), ModerationEvent{Entry: models.AuditLogEntry{Action: models.ActionApprove}})
	})
}
