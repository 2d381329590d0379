package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10, cfg.PointsPerApproval)
	assert.Equal(t, int64(14400), cfg.AccessTTLSeconds)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.True(t, cfg.SeedDemo)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("POINTS_PER_APPROVAL", "25")
	t.Setenv("CORS_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.PointsPerApproval)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CorsOrigins)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoad_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load("")
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoad_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"points", "POINTS_PER_APPROVAL", "0"},
		{"log format", "LOG_FORMAT", "xml"},
		{"rate", "RATE_LIMIT_PER_MINUTE", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "secret")
			t.Setenv(tt.key, tt.value)
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("LOG_LEVEL: debug\nPOINTS_PER_APPROVAL: 15\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 15, cfg.PointsPerApproval)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestWatch_NoFile(t *testing.T) {
	assert.NoError(t, Watch("", func(Config) {}))
}
