package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const maxRetentionDays = 7

// DailyFile is an io.Writer that appends to app-YYYY-MM-DD.log in dir and
// switches files when the date changes.
type DailyFile struct {
	dir           string
	retentionDays int
	now           func() time.Time

	mu   sync.Mutex
	date string
	file *os.File
}

func NewDailyFile(dir string, retentionDays int) (*DailyFile, error) {
	if retentionDays <= 0 {
		retentionDays = maxRetentionDays
	}
	if retentionDays > maxRetentionDays {
		retentionDays = maxRetentionDays
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	d := &DailyFile{dir: dir, retentionDays: retentionDays, now: time.Now}
	if err := d.rotate(d.now().Format("2006-01-02")); err != nil {
		return nil, err
	}
	d.Cleanup()
	return d, nil
}

func (d *DailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if date := d.now().Format("2006-01-02"); date != d.date {
		if err := d.rotate(date); err != nil {
			return 0, err
		}
	}
	return d.file.Write(p)
}

func (d *DailyFile) rotate(date string) error {
	file, err := os.OpenFile(filepath.Join(d.dir, fmt.Sprintf("app-%s.log", date)), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if d.file != nil {
		_ = d.file.Close()
	}
	d.file = file
	d.date = date
	return nil
}

// Cleanup removes log files older than the retention window.
func (d *DailyFile) Cleanup() int {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return 0
	}
	cutoff := d.now().AddDate(0, 0, -(d.retentionDays - 1))
	cutoff = time.Date(cutoff.Year(), cutoff.Month(), cutoff.Day(), 0, 0, 0, 0, cutoff.Location())
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() {
			continue
		}
		if !strings.HasPrefix(name, "app-") || !strings.HasSuffix(name, ".log") {
			continue
		}
		datePart := strings.TrimSuffix(strings.TrimPrefix(name, "app-"), ".log")
		logDate, err := time.ParseInLocation("2006-01-02", datePart, cutoff.Location())
		if err != nil {
			continue
		}
		if logDate.Before(cutoff) {
			if os.Remove(filepath.Join(d.dir, name)) == nil {
				removed++
			}
		}
	}
	return removed
}

func (d *DailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	return d.file.Close()
}
