package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"geekshub-backend-go/internal/config"
	"geekshub-backend-go/internal/models"
	"geekshub-backend-go/internal/ratelimit"
	"geekshub-backend-go/internal/services"
	"geekshub-backend-go/internal/store"
	"geekshub-backend-go/internal/telemetry"
)

type Server struct {
	Config     config.Config
	Store      store.Store
	Tokens     services.TokenService
	Accounts   *services.Accounts
	Requests   *services.Requests
	Moderation *services.Moderation
	Ledger     *services.Ledger
	Audit      *services.AuditLog
	Catalog    *services.Catalog
	Media      *services.Media
	Hub        *services.Hub
	History    *services.MetricsHistory
	Limiter    ratelimit.Limiter
	Reporter   *telemetry.Reporter
	JWKS       *services.JWKSVerifier
}

// Options carries the collaborators built outside the HTTP layer. Nil
// fields get in-process defaults.
type Options struct {
	Publisher services.Publisher
	Hub       *services.Hub
	History   *services.MetricsHistory
	Limiter   ratelimit.Limiter
	Reporter  *telemetry.Reporter
	JWKS      *services.JWKSVerifier
}

func NewTokenService(cfg config.Config) services.TokenService {
	return services.TokenService{
		Secret:     []byte(cfg.JWTSecret),
		Issuer:     cfg.JWTIssuer,
		AccessTTL:  time.Duration(cfg.AccessTTLSeconds) * time.Second,
		RefreshTTL: time.Duration(cfg.RefreshTTLSeconds) * time.Second,
	}
}

func NewServer(cfg config.Config, st store.Store, opts Options) *Server {
	tokens := NewTokenService(cfg)
	if opts.Hub == nil {
		opts.Hub = services.NewHub()
	}
	if opts.History == nil {
		opts.History = services.NewMetricsHistory(cfg.MetricsHistorySize)
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.NewMemory(ratelimit.Config{
			RequestsPerMinute: cfg.RateLimitPerMinute,
			BurstSize:         cfg.RateLimitBurst,
			CleanupInterval:   5 * time.Minute,
		})
	}
	if opts.Reporter == nil {
		opts.Reporter = telemetry.NewReporter("", cfg.Environment, "")
	}
	return &Server{
		Config:     cfg,
		Store:      st,
		Tokens:     tokens,
		Accounts:   services.NewAccounts(st, tokens),
		Requests:   services.NewRequests(st),
		Moderation: services.NewModeration(st, opts.Publisher, cfg.PointsPerApproval),
		Ledger:     services.NewLedger(st),
		Audit:      services.NewAuditLog(st),
		Catalog:    services.NewCatalog(st),
		Media:      services.NewMedia(st, cfg.MediaStoragePath, cfg.MediaMaxBytes),
		Hub:        opts.Hub,
		History:    opts.History,
		Limiter:    opts.Limiter,
		Reporter:   opts.Reporter,
		JWKS:       opts.JWKS,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(RequestLogger)
	r.Use(Recoverer(s.Reporter))
	r.Use(Metrics)
	if len(s.Config.CorsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.Config.CorsOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	moderators := RequireAnyRole(models.RoleAdmin, models.RoleModerator)

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/register", s.Register)
		api.Post("/auth/login", s.Login)
		api.Post("/auth/refresh", s.Refresh)
		api.Post("/auth/logout", s.Logout)

		api.Route("/me", func(me chi.Router) {
			me.Use(s.WithAuth)
			me.Get("/", s.Me)
			me.Get("/reputation", s.MyReputation)
			me.Get("/file-requests", s.MyFileRequests)
			me.Delete("/file-requests/{id}", s.WithdrawFileRequest)
		})

		api.With(s.WithAuth, s.RateLimit).Post("/file-requests", s.CreateFileRequest)

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(s.WithAuth)

			admin.Route("/file-requests", func(fr chi.Router) {
				fr.Use(moderators)
				fr.Get("/", s.ListFileRequests)
				fr.Get("/stats", s.FileRequestStats)
				fr.Post("/bulk-approve", s.BulkApprove)
				fr.Post("/bulk-reject", s.BulkReject)
				fr.Patch("/{id}/approve", s.Approve)
				fr.Patch("/{id}/reject", s.Reject)
				fr.Patch("/{id}/undo-approve", s.UndoApprove)
				fr.Patch("/{id}/undo-reject", s.UndoReject)
			})
			admin.With(moderators).Get("/audit-logs", s.AuditLogs)
			admin.With(moderators).Get("/metrics/history", s.MetricsHistory)

			admin.Route("/users", func(users chi.Router) {
				users.Use(RequireRole(models.RoleAdmin))
				users.Get("/", s.ListUsers)
				users.Put("/{userId}/role", s.SetUserRole)
			})
		})

		api.Route("/catalog", func(catalog chi.Router) {
			catalog.Get("/majors", s.Majors)
			catalog.Get("/years", s.Years)
			catalog.Get("/semesters", s.Semesters)
			catalog.Get("/courses", s.Courses)
			catalog.Get("/courses/{id}", s.Course)
			catalog.Get("/lecturers", s.Lecturers)
			catalog.Get("/files", s.Files)
			catalog.Get("/files/{id}", s.File)
			catalog.Get("/search", s.Search)
		})
		api.Get("/contributors/top", s.TopContributors)

		api.Route("/media", func(media chi.Router) {
			media.Use(s.WithAuth)
			media.With(s.RateLimit).Post("/uploads", s.UploadMedia)
			media.Get("/assets/{assetId}/content", s.MediaContent)
		})
	})

	r.Get("/ws/moderation", s.ModerationSocket)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", s.Health)
	return r
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Ping(r.Context()); err != nil {
		slog.Warn("health check failed", "error", err)
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
