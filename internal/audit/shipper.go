// Package audit ships moderation audit entries to destinations outside the
// primary store, such as a JSON-lines file or a webhook feeding a log
// aggregator. The store remains the source of truth; shipping is best effort.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"

	"geekshub-backend-go/internal/models"
	"geekshub-backend-go/internal/telemetry"
)

// ErrShipperClosed is returned by Ship once Close has been called.
var ErrShipperClosed = errors.New("audit shipper closed")

// LogEntry is the wire form of a moderation audit entry.
type LogEntry struct {
	ID        string               `json:"id"`
	Timestamp time.Time            `json:"timestamp"`
	Action    string               `json:"action"`
	ActorID   string               `json:"actorId"`
	ActorName string               `json:"actorName,omitempty"`
	TargetIDs []string             `json:"targetIds"`
	Metadata  models.AuditMetadata `json:"metadata"`
	RequestID string               `json:"requestId,omitempty"`
}

func FromModel(entry models.AuditLogEntry, requestID string) *LogEntry {
	return &LogEntry{
		ID:        entry.ID,
		Timestamp: entry.Timestamp,
		Action:    string(entry.Action),
		ActorID:   entry.ActorID,
		ActorName: entry.ActorName,
		TargetIDs: entry.TargetIDs,
		Metadata:  entry.Metadata,
		RequestID: requestID,
	}
}

type Shipper interface {
	Ship(ctx context.Context, entry *LogEntry) error
	Close() error
}

type ShipperConfig struct {
	Type    string
	Webhook *WebhookConfig
	File    *FileConfig
}

type WebhookConfig struct {
	URL     string
	Headers map[string]string
	Timeout time.Duration
	// BatchSize of 0 sends each entry on its own.
	BatchSize     int
	FlushInterval time.Duration
}

type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
}

// MultiShipper fans an entry out to every configured shipper.
type MultiShipper struct {
	shippers []Shipper
	mu       sync.RWMutex
}

func NewMultiShipper(configs []ShipperConfig) (*MultiShipper, error) {
	ms := &MultiShipper{shippers: make([]Shipper, 0, len(configs))}
	for _, cfg := range configs {
		var shipper Shipper
		var err error
		switch cfg.Type {
		case "webhook":
			if cfg.Webhook == nil || cfg.Webhook.URL == "" {
				return nil, fmt.Errorf("webhook config is required for webhook shipper")
			}
			shipper = NewWebhookShipper(cfg.Webhook)
		case "file":
			if cfg.File == nil || cfg.File.Path == "" {
				return nil, fmt.Errorf("file config is required for file shipper")
			}
			shipper, err = NewFileShipper(cfg.File)
		default:
			return nil, fmt.Errorf("unknown shipper type: %s", cfg.Type)
		}
		if err != nil {
			_ = ms.Close()
			return nil, fmt.Errorf("create %s shipper: %w", cfg.Type, err)
		}
		ms.shippers = append(ms.shippers, shipper)
	}
	return ms, nil
}

func (ms *MultiShipper) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.shippers)
}

// Ship tries every shipper and returns the last error seen.
func (ms *MultiShipper) Ship(ctx context.Context, entry *LogEntry) error {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	var lastErr error
	for _, shipper := range ms.shippers {
		if err := shipper.Ship(ctx, entry); err != nil {
			lastErr = err
			slog.Warn("audit shipper error", "entry", entry.ID, "error", err)
		}
	}
	return lastErr
}

func (ms *MultiShipper) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	var lastErr error
	for _, shipper := range ms.shippers {
		if err := shipper.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

type WebhookShipper struct {
	cfg     *WebhookConfig
	client  *http.Client
	batchCh chan *LogEntry
	batch   []*LogEntry
	batchMu sync.Mutex
	closeCh chan struct{}
	doneCh  chan struct{}

	// stateMu orders Ship against Close so nothing is queued after the
	// batch loop has drained.
	stateMu sync.RWMutex
	closed  bool
}

func NewWebhookShipper(cfg *WebhookConfig) *WebhookShipper {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	ws := &WebhookShipper{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		batchCh: make(chan *LogEntry, 1000),
		closeCh: make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	if cfg.BatchSize > 0 {
		go ws.processBatches()
	} else {
		close(ws.doneCh)
	}
	return ws
}

func (ws *WebhookShipper) processBatches() {
	defer close(ws.doneCh)
	flushInterval := ws.cfg.FlushInterval
	if flushInterval == 0 {
		flushInterval = 5 * time.Second
	}
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case entry := <-ws.batchCh:
			ws.batchMu.Lock()
			ws.batch = append(ws.batch, entry)
			if len(ws.batch) >= ws.cfg.BatchSize {
				ws.flushBatch()
			}
			ws.batchMu.Unlock()
		case <-ticker.C:
			ws.batchMu.Lock()
			ws.flushBatch()
			ws.batchMu.Unlock()
		case <-ws.closeCh:
			ws.batchMu.Lock()
			for {
				select {
				case entry := <-ws.batchCh:
					ws.batch = append(ws.batch, entry)
					continue
				default:
				}
				break
			}
			ws.flushBatch()
			ws.batchMu.Unlock()
			return
		}
	}
}

// flushBatch must be called with batchMu held. Entries in a failed batch are
// counted as ship failures since Ship already returned for them.
func (ws *WebhookShipper) flushBatch() {
	size := len(ws.batch)
	if size == 0 {
		return
	}
	data, err := json.Marshal(ws.batch)
	ws.batch = ws.batch[:0]
	if err != nil {
		telemetry.AuditShipFailuresTotal.Add(float64(size))
		slog.Error("marshal audit batch", "entries", size, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), ws.cfg.Timeout)
	defer cancel()
	if err := ws.send(ctx, data); err != nil {
		telemetry.AuditShipFailuresTotal.Add(float64(size))
		slog.Error("send audit batch", "entries", size, "error", err)
	}
}

func (ws *WebhookShipper) Ship(ctx context.Context, entry *LogEntry) error {
	ws.stateMu.RLock()
	defer ws.stateMu.RUnlock()
	if ws.closed {
		return ErrShipperClosed
	}
	if ws.cfg.BatchSize > 0 {
		select {
		case ws.batchCh <- entry:
			return nil
		default:
		}
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	return ws.send(ctx, data)
}

func (ws *WebhookShipper) send(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range ws.cfg.Headers {
		req.Header.Set(k, v)
	}
	resp, err := ws.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Close flushes any queued batch before returning. Later calls to Ship fail
// with ErrShipperClosed.
func (ws *WebhookShipper) Close() error {
	ws.stateMu.Lock()
	if !ws.closed {
		ws.closed = true
		close(ws.closeCh)
	}
	ws.stateMu.Unlock()
	<-ws.doneCh
	return nil
}

// FileShipper appends one JSON document per line and rotates by size.
type FileShipper struct {
	cfg  *FileConfig
	file *os.File
	mu   sync.Mutex
}

func NewFileShipper(cfg *FileConfig) (*FileShipper, error) {
	file, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit log file: %w", err)
	}
	return &FileShipper{cfg: cfg, file: file}, nil
}

func (fs *FileShipper) Ship(_ context.Context, entry *LogEntry) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.cfg.MaxSizeMB > 0 {
		info, err := fs.file.Stat()
		if err == nil && info.Size() > int64(fs.cfg.MaxSizeMB)*1024*1024 {
			if err := fs.rotate(); err != nil {
				slog.Error("rotate audit log", "error", err)
			}
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	if _, err := fs.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	return nil
}

// rotate shifts the backups and reopens the path. The current handle stays
// in place until the new file is open, so a failed reopen keeps writes going
// to the previous file instead of a closed one.
func (fs *FileShipper) rotate() error {
	for i := fs.cfg.MaxBackups - 1; i >= 1; i-- {
		_ = os.Rename(fmt.Sprintf("%s.%d", fs.cfg.Path, i), fmt.Sprintf("%s.%d", fs.cfg.Path, i+1))
	}
	if fs.cfg.MaxBackups > 0 {
		_ = os.Rename(fs.cfg.Path, fs.cfg.Path+".1")
		_ = os.Remove(fmt.Sprintf("%s.%d", fs.cfg.Path, fs.cfg.MaxBackups+1))
	} else {
		_ = os.Remove(fs.cfg.Path)
	}
	file, err := os.OpenFile(fs.cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return errors.Wrap(err, "reopen audit log file")
	}
	old := fs.file
	fs.file = file
	if err := old.Close(); err != nil {
		slog.Warn("close rotated audit log", "error", err)
	}
	return nil
}

func (fs *FileShipper) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.file.Close()
}
