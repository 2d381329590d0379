package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geekshub-backend-go/internal/models"
	"geekshub-backend-go/internal/telemetry"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func sampleEntry(id string) *LogEntry {
	return FromModel(models.AuditLogEntry{
		ID:        id,
		Timestamp: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		ActorID:   "admin1",
		ActorName: "Admin User",
		Action:    models.ActionApprove,
		TargetIDs: []string{"req1"},
		Metadata: models.AuditMetadata{
			PreviousStatus: models.StatusPending,
			NewStatus:      models.StatusApproved,
		},
	}, "rid-1")
}

func TestNewMultiShipper_RejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  ShipperConfig
	}{
		{"unknown type", ShipperConfig{Type: "syslog"}},
		{"webhook without url", ShipperConfig{Type: "webhook", Webhook: &WebhookConfig{}}},
		{"file without path", ShipperConfig{Type: "file"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMultiShipper([]ShipperConfig{tt.cfg})
			assert.Error(t, err)
		})
	}
}

func TestFileShipper_WritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	ms, err := NewMultiShipper([]ShipperConfig{{Type: "file", File: &FileConfig{Path: path}}})
	require.NoError(t, err)
	require.Equal(t, 1, ms.Len())

	require.NoError(t, ms.Ship(context.Background(), sampleEntry("a1")))
	require.NoError(t, ms.Ship(context.Background(), sampleEntry("a2")))
	require.NoError(t, ms.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var got LogEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &got))
		ids = append(ids, got.ID)
		assert.Equal(t, "APPROVE", got.Action)
		assert.Equal(t, "rid-1", got.RequestID)
	}
	assert.Equal(t, []string{"a1", "a2"}, ids)
}

func TestFileShipper_RotatesWhenOversized(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")
	require.NoError(t, os.WriteFile(path, make([]byte, 1024*1024+1), 0o600))

	fs, err := NewFileShipper(&FileConfig{Path: path, MaxSizeMB: 1, MaxBackups: 2})
	require.NoError(t, err)
	require.NoError(t, fs.Ship(context.Background(), sampleEntry("a1")))
	require.NoError(t, fs.Close())

	_, err = os.Stat(path + ".1")
	assert.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Less(t, info.Size(), int64(1024))
}

func TestWebhookShipper_SendsSingleEntry(t *testing.T) {
	var got LogEntry
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	ws := NewWebhookShipper(&WebhookConfig{URL: srv.URL, Headers: map[string]string{"Authorization": "Bearer x"}})
	require.NoError(t, ws.Ship(context.Background(), sampleEntry("a1")))
	require.NoError(t, ws.Close())

	assert.Equal(t, "a1", got.ID)
	assert.Equal(t, "Bearer x", auth)
}

func TestWebhookShipper_ReportsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ws := NewWebhookShipper(&WebhookConfig{URL: srv.URL})
	defer ws.Close()
	assert.Error(t, ws.Ship(context.Background(), sampleEntry("a1")))
}

func TestWebhookShipper_FlushesBatchOnClose(t *testing.T) {
	var mu sync.Mutex
	var batches [][]LogEntry
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var batch []LogEntry
		_ = json.NewDecoder(r.Body).Decode(&batch)
		mu.Lock()
		batches = append(batches, batch)
		mu.Unlock()
	}))
	defer srv.Close()

	ws := NewWebhookShipper(&WebhookConfig{URL: srv.URL, BatchSize: 10, FlushInterval: time.Hour})
	for _, id := range []string{"a1", "a2", "a3"} {
		require.NoError(t, ws.Ship(context.Background(), sampleEntry(id)))
	}
	require.NoError(t, ws.Close())

	mu.Lock()
	defer mu.Unlock()
	total := 0
	for _, b := range batches {
		total += len(b)
	}
	assert.Equal(t, 3, total)
}

func TestWebhookShipper_CountsFailedBatch(t *testing.T) {
	var calls int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	before := counterValue(t, telemetry.AuditShipFailuresTotal)
	ws := NewWebhookShipper(&WebhookConfig{URL: srv.URL, BatchSize: 1, FlushInterval: time.Hour})
	require.NoError(t, ws.Ship(context.Background(), sampleEntry("a1")))

	assert.Eventually(t, func() bool {
		return counterValue(t, telemetry.AuditShipFailuresTotal) == before+1
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, ws.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestWebhookShipper_RejectsShipAfterClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	for _, batch := range []int{0, 5} {
		ws := NewWebhookShipper(&WebhookConfig{URL: srv.URL, BatchSize: batch, FlushInterval: time.Hour})
		require.NoError(t, ws.Close())
		require.NoError(t, ws.Close())
		assert.ErrorIs(t, ws.Ship(context.Background(), sampleEntry("late")), ErrShipperClosed)
	}
}

func TestFileShipper_KeepsWritingWhenReopenFails(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "audit")
	require.NoError(t, os.Mkdir(dir, 0o700))
	path := filepath.Join(dir, "audit.jsonl")
	require.NoError(t, os.WriteFile(path, make([]byte, 1024*1024+1), 0o600))

	fs, err := NewFileShipper(&FileConfig{Path: path, MaxSizeMB: 1, MaxBackups: 1})
	require.NoError(t, err)
	defer fs.Close()

	// With the directory gone the rotated file cannot be reopened.
	require.NoError(t, os.RemoveAll(dir))
	assert.NoError(t, fs.Ship(context.Background(), sampleEntry("a1")))
	assert.NoError(t, fs.Ship(context.Background(), sampleEntry("a2")))
}
