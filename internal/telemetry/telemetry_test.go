package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyFile_RotatesOnDateChange(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDailyFile(dir, 3)
	require.NoError(t, err)
	defer d.Close()

	day := time.Date(2025, 5, 1, 23, 59, 0, 0, time.UTC)
	d.now = func() time.Time { return day }
	_, err = d.Write([]byte("first\n"))
	require.NoError(t, err)

	day = day.Add(2 * time.Minute)
	_, err = d.Write([]byte("second\n"))
	require.NoError(t, err)

	first, err := os.ReadFile(filepath.Join(dir, "app-2025-05-01.log"))
	require.NoError(t, err)
	assert.Equal(t, "first\n", string(first))
	second, err := os.ReadFile(filepath.Join(dir, "app-2025-05-02.log"))
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(second))
}

func TestDailyFile_CleanupKeepsRetentionWindow(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDailyFile(dir, 30)
	require.NoError(t, err)
	defer d.Close()
	assert.Equal(t, maxRetentionDays, d.retentionDays)

	for _, name := range []string{"app-2025-04-25.log", "app-2025-04-27.log", "app-2025-04-28.log", "app-2025-04-29.log", "notes.txt", "app-garbage.log"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	d.retentionDays = 3
	d.now = func() time.Time { return time.Date(2025, 4, 30, 12, 0, 0, 0, time.Local) }

	assert.Equal(t, 2, d.Cleanup())
	assert.NoFileExists(t, filepath.Join(dir, "app-2025-04-25.log"))
	assert.NoFileExists(t, filepath.Join(dir, "app-2025-04-27.log"))
	assert.FileExists(t, filepath.Join(dir, "app-2025-04-28.log"))
	assert.FileExists(t, filepath.Join(dir, "app-2025-04-29.log"))
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
	assert.FileExists(t, filepath.Join(dir, "app-garbage.log"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel(" DEBUG "))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestSetupLoggerAndSetLevel(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	SetupLogger("json", "warn", &buf)
	slog.Info("hidden")
	slog.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	SetLevel("debug")
	slog.Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestRequestIDContext(t *testing.T) {
	assert.Equal(t, "", RequestID(context.Background()))
	ctx := WithRequestID(context.Background(), "abc")
	assert.Equal(t, "abc", RequestID(ctx))
}

func TestReporterDisabledWithoutToken(t *testing.T) {
	r := NewReporter("", "test", "dev")
	assert.False(t, r.Enabled())
	assert.NotPanics(t, func() {
		r.Error(assert.AnError, nil)
		r.Close()
	})
}
