package services

import (
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

type MetricSample struct {
	CapturedAt        time.Time `json:"capturedAt"`
	ProcessRSSBytes   int64     `json:"processRssBytes"`
	SystemMemoryTotal int64     `json:"systemMemoryTotalBytes"`
	SystemMemoryUsed  int64     `json:"systemMemoryUsedBytes"`
	DiskTotalBytes    int64     `json:"diskTotalBytes"`
	DiskUsedBytes     int64     `json:"diskUsedBytes"`
	ProcessCpuLoad    float64   `json:"processCpuLoad"`
	SystemCpuLoad     float64   `json:"systemCpuLoad"`
}

// CaptureMetrics samples host and process usage. Disk usage is read for
// diskPath, falling back to the root filesystem.
func CaptureMetrics(diskPath string) (MetricSample, error) {
	sample := MetricSample{CapturedAt: time.Now().UTC()}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		return MetricSample{}, WrapError(err, "read memory stats")
	}
	sample.SystemMemoryTotal = int64(memStat.Total)
	sample.SystemMemoryUsed = int64(memStat.Total - memStat.Available)

	diskStat, err := disk.Usage(diskPath)
	if err != nil {
		diskStat, err = disk.Usage("/")
	}
	if err == nil {
		sample.DiskTotalBytes = int64(diskStat.Total)
		sample.DiskUsedBytes = int64(diskStat.Used)
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if info, err := proc.MemoryInfo(); err == nil && info != nil {
			sample.ProcessRSSBytes = int64(info.RSS)
		}
		if pct, err := proc.CPUPercent(); err == nil {
			sample.ProcessCpuLoad = pct / 100.0
		}
	}
	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		sample.SystemCpuLoad = pcts[0] / 100.0
	}
	return sample, nil
}

// MetricsHistory keeps the most recent samples in a fixed ring.
type MetricsHistory struct {
	mu    sync.RWMutex
	items []MetricSample
	next  int
	full  bool
}

func NewMetricsHistory(size int) *MetricsHistory {
	if size <= 0 {
		size = 720
	}
	return &MetricsHistory{items: make([]MetricSample, size)}
}

func (h *MetricsHistory) Add(sample MetricSample) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items[h.next] = sample
	h.next = (h.next + 1) % len(h.items)
	if h.next == 0 {
		h.full = true
	}
}

// Latest returns up to limit samples, oldest first.
func (h *MetricsHistory) Latest(limit int) []MetricSample {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := h.next
	if h.full {
		count = len(h.items)
	}
	if limit <= 0 || limit > count {
		limit = count
	}
	out := make([]MetricSample, 0, limit)
	start := h.next - limit
	for i := 0; i < limit; i++ {
		idx := (start + i + len(h.items)) % len(h.items)
		out = append(out, h.items[idx])
	}
	return out
}
