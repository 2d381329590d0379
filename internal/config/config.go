package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration. Keys are the flat environment names;
// a YAML or JSON file named by CONFIG_FILE may set the same keys.
type Config struct {
	Port        string
	Environment string
	DatabaseURL string
	SeedDemo    bool

	JWTSecret         string
	JWTIssuer         string
	AccessTTLSeconds  int64
	RefreshTTLSeconds int64
	JWKSURL           string
	JWKSIssuer        string
	JWKSRefresh       time.Duration
	JWKSRolesClaim    string

	MediaStoragePath string
	MediaMaxBytes    int64

	MetricsDiskPath      string
	MetricsSampleSeconds int
	MetricsHistorySize   int

	CorsOrigins []string

	LogDir           string
	LogRetentionDays int
	LogLevel         string
	LogFormat        string

	PointsPerApproval int

	RateLimitPerMinute int
	RateLimitBurst     int
	RedisURL           string

	CourseCacheSize int
	CourseCacheTTL  time.Duration

	RollbarToken string

	SendgridAPIKey string
	MailFrom       string

	AuditLogFile        string
	AuditLogMaxSizeMB   int
	AuditLogMaxBackups  int
	AuditWebhookURL     string
	AuditWebhookToken   string
	AuditWebhookBatch   int
	AuditWebhookFlushMs int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("SEED_DEMO_DATA", true)
	v.SetDefault("JWT_ISSUER", "geekshub")
	v.SetDefault("ACCESS_TTL_SECONDS", 14400)
	v.SetDefault("REFRESH_TTL_SECONDS", 1209600)
	v.SetDefault("AUTH_JWKS_REFRESH_SECONDS", 3600)
	v.SetDefault("AUTH_ROLES_CLAIM", "roles")
	v.SetDefault("MEDIA_STORAGE_PATH", "storage/media")
	v.SetDefault("MEDIA_MAX_BYTES", 50*1024*1024)
	v.SetDefault("METRICS_DISK_PATH", "storage/media")
	v.SetDefault("METRICS_SAMPLE_INTERVAL", 5)
	v.SetDefault("METRICS_HISTORY_SIZE", 720)
	v.SetDefault("LOG_DIR", "storage/logs")
	v.SetDefault("LOG_RETENTION_DAYS", 7)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("POINTS_PER_APPROVAL", 10)
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 30)
	v.SetDefault("RATE_LIMIT_BURST", 5)
	v.SetDefault("COURSE_CACHE_SIZE", 256)
	v.SetDefault("COURSE_CACHE_TTL_SECONDS", 300)
	v.SetDefault("MAIL_FROM", "noreply@geekshub.local")
	v.SetDefault("AUDIT_LOG_MAX_SIZE_MB", 100)
	v.SetDefault("AUDIT_LOG_MAX_BACKUPS", 5)
	v.SetDefault("AUDIT_WEBHOOK_BATCH_SIZE", 0)
	v.SetDefault("AUDIT_WEBHOOK_FLUSH_MS", 5000)
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	if path == "" {
		return v, nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	return v, nil
}

// Load reads .env (if present), then defaults, environment variables and
// the optional config file at path.
func Load(path string) (Config, error) {
	_ = godotenv.Load()
	v, err := newViper(path)
	if err != nil {
		return Config{}, err
	}
	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) Config {
	return Config{
		Port:        v.GetString("PORT"),
		Environment: v.GetString("APP_ENV"),
		DatabaseURL: strings.TrimSpace(v.GetString("DATABASE_URL")),
		SeedDemo:    v.GetBool("SEED_DEMO_DATA"),

		JWTSecret:         strings.TrimSpace(v.GetString("JWT_SECRET")),
		JWTIssuer:         v.GetString("JWT_ISSUER"),
		AccessTTLSeconds:  v.GetInt64("ACCESS_TTL_SECONDS"),
		RefreshTTLSeconds: v.GetInt64("REFRESH_TTL_SECONDS"),
		JWKSURL:           strings.TrimSpace(v.GetString("AUTH_JWKS_URL")),
		JWKSIssuer:        strings.TrimSpace(v.GetString("AUTH_ISSUER")),
		JWKSRefresh:       time.Duration(v.GetInt("AUTH_JWKS_REFRESH_SECONDS")) * time.Second,
		JWKSRolesClaim:    v.GetString("AUTH_ROLES_CLAIM"),

		MediaStoragePath: v.GetString("MEDIA_STORAGE_PATH"),
		MediaMaxBytes:    v.GetInt64("MEDIA_MAX_BYTES"),

		MetricsDiskPath:      v.GetString("METRICS_DISK_PATH"),
		MetricsSampleSeconds: v.GetInt("METRICS_SAMPLE_INTERVAL"),
		MetricsHistorySize:   v.GetInt("METRICS_HISTORY_SIZE"),

		CorsOrigins: parseCSV(v.GetString("CORS_ORIGINS")),

		LogDir:           v.GetString("LOG_DIR"),
		LogRetentionDays: v.GetInt("LOG_RETENTION_DAYS"),
		LogLevel:         v.GetString("LOG_LEVEL"),
		LogFormat:        v.GetString("LOG_FORMAT"),

		PointsPerApproval: v.GetInt("POINTS_PER_APPROVAL"),

		RateLimitPerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),
		RateLimitBurst:     v.GetInt("RATE_LIMIT_BURST"),
		RedisURL:           strings.TrimSpace(v.GetString("REDIS_URL")),

		CourseCacheSize: v.GetInt("COURSE_CACHE_SIZE"),
		CourseCacheTTL:  time.Duration(v.GetInt("COURSE_CACHE_TTL_SECONDS")) * time.Second,

		RollbarToken: v.GetString("ROLLBAR_TOKEN"),

		SendgridAPIKey: v.GetString("SENDGRID_API_KEY"),
		MailFrom:       v.GetString("MAIL_FROM"),

		AuditLogFile:        v.GetString("AUDIT_LOG_FILE"),
		AuditLogMaxSizeMB:   v.GetInt("AUDIT_LOG_MAX_SIZE_MB"),
		AuditLogMaxBackups:  v.GetInt("AUDIT_LOG_MAX_BACKUPS"),
		AuditWebhookURL:     v.GetString("AUDIT_WEBHOOK_URL"),
		AuditWebhookToken:   v.GetString("AUDIT_WEBHOOK_TOKEN"),
		AuditWebhookBatch:   v.GetInt("AUDIT_WEBHOOK_BATCH_SIZE"),
		AuditWebhookFlushMs: v.GetInt("AUDIT_WEBHOOK_FLUSH_MS"),
	}
}

func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("missing env var: JWT_SECRET")
	}
	if c.AccessTTLSeconds <= 0 || c.RefreshTTLSeconds <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}
	if c.PointsPerApproval <= 0 {
		return fmt.Errorf("POINTS_PER_APPROVAL must be positive, got %d", c.PointsPerApproval)
	}
	if c.MetricsSampleSeconds <= 0 {
		return fmt.Errorf("METRICS_SAMPLE_INTERVAL must be positive")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.MediaMaxBytes <= 0 {
		return fmt.Errorf("MEDIA_MAX_BYTES must be positive")
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	return nil
}

// Watch reloads the config file on change and passes the new values to
// onChange. Invalid edits are logged and ignored. It is a no-op without a file.
func Watch(path string, onChange func(Config)) error {
	if path == "" {
		return nil
	}
	v, err := newViper(path)
	if err != nil {
		return err
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		cfg := fromViper(v)
		if err := cfg.Validate(); err != nil {
			slog.Warn("ignoring invalid config change", "file", e.Name, "error", err)
			return
		}
		slog.Info("config file changed", "file", e.Name, "op", e.Op.String())
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

func parseCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value != "" {
			items = append(items, value)
		}
	}
	return items
}
