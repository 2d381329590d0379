package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAt(minute int) MetricSample {
	return MetricSample{CapturedAt: time.Date(2025, 1, 1, 0, minute, 0, 0, time.UTC)}
}

func TestMetricsHistory_KeepsNewestInOrder(t *testing.T) {
	h := NewMetricsHistory(3)
	assert.Empty(t, h.Latest(10))

	h.Add(sampleAt(1))
	h.Add(sampleAt(2))
	got := h.Latest(0)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].CapturedAt.Minute())

	h.Add(sampleAt(3))
	h.Add(sampleAt(4))
	h.Add(sampleAt(5))
	got = h.Latest(0)
	require.Len(t, got, 3)
	assert.Equal(t, 3, got[0].CapturedAt.Minute())
	assert.Equal(t, 5, got[2].CapturedAt.Minute())

	got = h.Latest(2)
	require.Len(t, got, 2)
	assert.Equal(t, 4, got[0].CapturedAt.Minute())
	assert.Equal(t, 5, got[1].CapturedAt.Minute())
}

func TestCaptureMetrics(t *testing.T) {
	sample, err := CaptureMetrics(t.TempDir())
	require.NoError(t, err)
	assert.Positive(t, sample.SystemMemoryTotal)
	assert.False(t, sample.CapturedAt.IsZero())
}
