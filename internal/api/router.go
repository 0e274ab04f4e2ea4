package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/foliohq/folio/internal/auth"
	"github.com/foliohq/folio/internal/db"
	"github.com/foliohq/folio/internal/repositories"
)

// RouterConfig holds all dependencies needed to build the HTTP router.
// It is populated in main.go after all components are initialized and
// passed to NewRouter as a single struct to keep the constructor signature
// manageable as the number of dependencies grows.
type RouterConfig struct {
	AuthService *auth.Service
	Logger      *zap.Logger
	Database    *gorm.DB

	// Repositories, used directly by handlers; there is no service layer
	// between handler and repository for plain content CRUD.
	Companies repositories.CompanyRepository
	Education repositories.EducationRepository
	Projects  repositories.ProjectRepository
	Documents repositories.DocumentRepository
	Settings  repositories.SettingsRepository

	// AllowedOrigins lists the frontend origins allowed to call the API
	// cross-origin. Empty disables CORS handling (same-origin deployments
	// and tests).
	AllowedOrigins []string

	// AuthRequestsPerMinute is the per-IP rate limit applied to the /auth/*
	// routes. Zero disables rate limiting (tests).
	AuthRequestsPerMinute int

	// Secure controls whether auth cookies are set with the Secure flag.
	// Set to true in production (HTTPS), false in local development.
	Secure bool
}

// NewRouter builds and returns the fully configured Chi router.
//
// Reads are public. Every mutating route is registered inside the single
// authenticated group; that group is the only place write access is
// granted, so a route added outside it is visibly public in review.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// --- Global middleware ---
	// RequestID generates a unique ID for each request, used in logs and
	// response headers for tracing.
	r.Use(middleware.RequestID)

	// RealIP extracts the real client IP from X-Forwarded-For or X-Real-IP
	// headers when the server runs behind a reverse proxy. The rate limiter
	// keys on this.
	r.Use(middleware.RealIP)

	// RequestLogger logs every request with method, path, and status.
	r.Use(RequestLogger(cfg.Logger))

	// Recoverer catches panics in handlers, logs them, and returns a 500
	// instead of crashing the server.
	r.Use(middleware.Recoverer)

	// CORS: the SPA may be served from a different origin than the API.
	// Credentials are allowed because the refresh token rides in a cookie.
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// --- Initialize handlers ---
	authHandler := NewAuthHandler(cfg.AuthService, cfg.Logger, cfg.Secure)
	companyHandler := NewCompanyHandler(cfg.Companies, cfg.Logger)
	educationHandler := NewEducationHandler(cfg.Education, cfg.Logger)
	projectHandler := NewProjectHandler(cfg.Projects, cfg.Logger)
	documentHandler := NewDocumentHandler(cfg.Documents, cfg.Logger)
	settingsHandler := NewSettingsHandler(cfg.Settings, cfg.Logger)

	// --- Operational endpoints, outside the API version prefix ---
	r.Get("/healthz", healthz(cfg.Database))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {

		// --- Auth routes (public, rate limited per IP) ---
		r.Group(func(r chi.Router) {
			if cfg.AuthRequestsPerMinute > 0 {
				r.Use(NewRateLimiter(cfg.AuthRequestsPerMinute).Middleware)
			}

			r.Get("/auth/login", authHandler.Login)
			r.Get("/auth/callback", authHandler.Callback)
			r.Post("/auth/refresh", authHandler.Refresh)
			r.Post("/auth/logout", authHandler.Logout)
		})

		// --- Public reads ---
		r.Group(func(r chi.Router) {
			r.Get("/companies", companyHandler.List)
			r.Get("/companies/{id}", companyHandler.GetByID)

			r.Get("/education", educationHandler.List)
			r.Get("/education/{id}", educationHandler.GetByID)

			r.Get("/projects", projectHandler.List)
			r.Get("/projects/{id}", projectHandler.GetByID)

			r.Get("/documents", documentHandler.List)

			// Unpublished documents stay hidden from anonymous callers but
			// resolve for the admin, so the token is parsed when present.
			r.With(AuthenticateOptional(cfg.AuthService)).Get("/documents/{id}", documentHandler.GetByID)
		})

		// --- Authenticated routes (valid access token required) ---
		// Every mutation lives here and nowhere else.
		r.Group(func(r chi.Router) {
			r.Use(Authenticate(cfg.AuthService))

			// Companies
			r.Post("/companies", companyHandler.Create)
			r.Patch("/companies/{id}", companyHandler.Update)
			r.Delete("/companies/{id}", companyHandler.Delete)

			// Education
			r.Post("/education", educationHandler.Create)
			r.Patch("/education/{id}", educationHandler.Update)
			r.Delete("/education/{id}", educationHandler.Delete)

			// Projects
			r.Post("/projects", projectHandler.Create)
			r.Patch("/projects/{id}", projectHandler.Update)
			r.Delete("/projects/{id}", projectHandler.Delete)

			// Documents: the admin listing includes unpublished entries.
			r.Get("/documents/all", documentHandler.ListAll)
			r.Post("/documents", documentHandler.Create)
			r.Patch("/documents/{id}", documentHandler.Update)
			r.Delete("/documents/{id}", documentHandler.Delete)

			// Alert delivery configuration
			r.Get("/settings/alerts", settingsHandler.GetAlerts)
			r.Put("/settings/alerts", settingsHandler.UpdateAlerts)
		})
	})

	return r
}

// healthz reports liveness and database reachability. Returns 503 when the
// database does not answer, so load balancers stop routing here.
func healthz(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context(), database); err != nil {
			JSON(w, http.StatusServiceUnavailable, envelope{"status": "degraded"})
			return
		}
		JSON(w, http.StatusOK, envelope{"status": "ok"})
	}
}
