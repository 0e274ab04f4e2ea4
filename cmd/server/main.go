// Command server runs the folio backend: the public portfolio API, the
// GitHub-OAuth admin login flow, and the background cleanup scheduler.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/foliohq/folio/internal/alert"
	"github.com/foliohq/folio/internal/api"
	"github.com/foliohq/folio/internal/auth"
	"github.com/foliohq/folio/internal/db"
	"github.com/foliohq/folio/internal/repositories"
	"github.com/foliohq/folio/internal/scheduler"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type config struct {
	httpAddr  string
	dbDriver  string
	dbDSN     string
	secretKey string
	logLevel  string

	githubClientID     string
	githubClientSecret string
	githubAdminID      int64
	oauthRedirectURL   string

	jwtIssuer         string
	jwtPrivateKeyPath string
	jwtPublicKeyPath  string
	accessTTL         time.Duration
	refreshTTL        time.Duration
	stateTTL          time.Duration
	cleanupInterval   time.Duration
	authRatePerMinute int
	frontendOrigin    string
	secureCookies     bool
}

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &config{}

	root := &cobra.Command{
		Use:   "folio-server",
		Short: "Folio server - personal portfolio backend",
		Long: `Folio server is the backend of a single-admin portfolio site.
It exposes a public REST API for portfolio content, a GitHub OAuth
login flow for the site owner, and guards every mutating route behind
short-lived JWT sessions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	root.AddCommand(newVersionCmd())

	root.PersistentFlags().StringVar(&cfg.httpAddr, "http-addr", envOrDefault("FOLIO_HTTP_ADDR", ":8080"), "HTTP API listen address")
	root.PersistentFlags().StringVar(&cfg.dbDriver, "db-driver", envOrDefault("FOLIO_DB_DRIVER", "sqlite"), "Database driver (sqlite or postgres)")
	root.PersistentFlags().StringVar(&cfg.dbDSN, "db-dsn", envOrDefault("FOLIO_DB_DSN", "./folio.db"), "Database DSN or file path for SQLite")
	root.PersistentFlags().StringVar(&cfg.secretKey, "secret-key", envOrDefault("FOLIO_SECRET_KEY", ""), "Master secret key for encrypting settings at rest, 32 bytes (required)")
	root.PersistentFlags().StringVar(&cfg.logLevel, "log-level", envOrDefault("FOLIO_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")

	root.PersistentFlags().StringVar(&cfg.githubClientID, "github-client-id", envOrDefault("FOLIO_GITHUB_CLIENT_ID", ""), "GitHub OAuth app client ID (required)")
	root.PersistentFlags().StringVar(&cfg.githubClientSecret, "github-client-secret", envOrDefault("FOLIO_GITHUB_CLIENT_SECRET", ""), "GitHub OAuth app client secret (required)")
	root.PersistentFlags().Int64Var(&cfg.githubAdminID, "github-admin-id", envInt64OrDefault("FOLIO_GITHUB_ADMIN_ID", 0), "Numeric GitHub account ID of the site admin (required)")
	root.PersistentFlags().StringVar(&cfg.oauthRedirectURL, "oauth-redirect-url", envOrDefault("FOLIO_OAUTH_REDIRECT_URL", ""), "Fully-qualified OAuth callback URL (required)")

	root.PersistentFlags().StringVar(&cfg.jwtIssuer, "jwt-issuer", envOrDefault("FOLIO_JWT_ISSUER", "folio"), "Issuer claim for session tokens")
	root.PersistentFlags().StringVar(&cfg.jwtPrivateKeyPath, "jwt-private-key", envOrDefault("FOLIO_JWT_PRIVATE_KEY", ""), "Path to PEM RSA private key; empty generates an ephemeral pair")
	root.PersistentFlags().StringVar(&cfg.jwtPublicKeyPath, "jwt-public-key", envOrDefault("FOLIO_JWT_PUBLIC_KEY", ""), "Path to PEM RSA public key")
	root.PersistentFlags().DurationVar(&cfg.accessTTL, "access-ttl", envDurationOrDefault("FOLIO_ACCESS_TTL", 15*time.Minute), "Access token lifetime")
	root.PersistentFlags().DurationVar(&cfg.refreshTTL, "refresh-ttl", envDurationOrDefault("FOLIO_REFRESH_TTL", 7*24*time.Hour), "Refresh token lifetime")
	root.PersistentFlags().DurationVar(&cfg.stateTTL, "state-ttl", envDurationOrDefault("FOLIO_STATE_TTL", auth.DefaultStateTTL), "OAuth state lifetime; bounds the window between login start and callback")
	root.PersistentFlags().DurationVar(&cfg.cleanupInterval, "cleanup-interval", envDurationOrDefault("FOLIO_CLEANUP_INTERVAL", scheduler.DefaultStateSweepInterval), "OAuth state cleanup interval")
	root.PersistentFlags().IntVar(&cfg.authRatePerMinute, "auth-rate-limit", envIntOrDefault("FOLIO_AUTH_RATE_LIMIT", 30), "Per-IP requests per minute on /auth routes, 0 disables")
	root.PersistentFlags().StringVar(&cfg.frontendOrigin, "frontend-origin", envOrDefault("FOLIO_FRONTEND_ORIGIN", ""), "Frontend origin allowed for CORS; empty for same-origin deployments")
	root.PersistentFlags().BoolVar(&cfg.secureCookies, "secure-cookies", envOrDefault("FOLIO_SECURE_COOKIES", "true") == "true", "Set the Secure flag on auth cookies (disable for local HTTP)")

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("folio-server %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func run(ctx context.Context, cfg *config) error {
	logger, err := buildLogger(cfg.logLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := validateConfig(cfg); err != nil {
		return err
	}

	logger.Info("starting folio server",
		zap.String("version", version),
		zap.String("http_addr", cfg.httpAddr),
		zap.String("db_driver", cfg.dbDriver),
		zap.String("log_level", cfg.logLevel),
	)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Encryption must be ready before any settings row is read or written.
	if err := db.InitEncryption([]byte(cfg.secretKey)); err != nil {
		return err
	}

	database, err := db.New(db.Config{
		Driver:   cfg.dbDriver,
		DSN:      cfg.dbDSN,
		Logger:   logger,
		LogLevel: gormLogLevel(cfg.logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// Repositories
	states := repositories.NewOAuthStateRepository(database)
	revoked := repositories.NewRevokedTokenRepository(database)
	companies := repositories.NewCompanyRepository(database)
	education := repositories.NewEducationRepository(database)
	projects := repositories.NewProjectRepository(database)
	documents := repositories.NewDocumentRepository(database)
	settings := repositories.NewSettingsRepository(database)

	// Session tokens
	var jwtMgr *auth.JWTManager
	if cfg.jwtPrivateKeyPath != "" && cfg.jwtPublicKeyPath != "" {
		jwtMgr, err = auth.NewJWTManagerFromFiles(cfg.jwtPrivateKeyPath, cfg.jwtPublicKeyPath, cfg.jwtIssuer, cfg.accessTTL, cfg.refreshTTL)
	} else {
		logger.Warn("no JWT key pair configured, generating an ephemeral one; sessions will not survive restarts")
		jwtMgr, err = auth.NewJWTManagerGenerated(cfg.jwtIssuer, cfg.accessTTL, cfg.refreshTTL)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize JWT manager: %w", err)
	}

	// Auth flow
	provider := auth.NewGitHubProvider(auth.GitHubConfig{
		ClientID:     cfg.githubClientID,
		ClientSecret: cfg.githubClientSecret,
		RedirectURL:  cfg.oauthRedirectURL,
	})
	verifier := auth.NewAdminVerifier(cfg.githubAdminID)
	alerts := alert.NewService(settings, logger)
	authSvc := auth.NewService(states, revoked, provider, verifier, jwtMgr, alerts, cfg.stateTTL, logger)

	// Background cleanup
	sched, err := scheduler.New(states, revoked, cfg.cleanupInterval, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize scheduler: %w", err)
	}
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer func() {
		if err := sched.Stop(); err != nil {
			logger.Error("scheduler stop failed", zap.Error(err))
		}
	}()

	// HTTP
	var origins []string
	if cfg.frontendOrigin != "" {
		origins = []string{cfg.frontendOrigin}
	}
	router := api.NewRouter(api.RouterConfig{
		AuthService:           authSvc,
		Logger:                logger,
		Database:              database,
		Companies:             companies,
		Education:             education,
		Projects:              projects,
		Documents:             documents,
		Settings:              settings,
		AllowedOrigins:        origins,
		AuthRequestsPerMinute: cfg.authRatePerMinute,
		Secure:                cfg.secureCookies,
	})

	srv := &http.Server{
		Addr:              cfg.httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.httpAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down folio server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	return nil
}

func validateConfig(cfg *config) error {
	if len(cfg.secretKey) != 32 {
		return fmt.Errorf("secret key must be exactly 32 bytes: set --secret-key or FOLIO_SECRET_KEY")
	}
	if cfg.githubClientID == "" || cfg.githubClientSecret == "" {
		return fmt.Errorf("GitHub OAuth credentials are required: set FOLIO_GITHUB_CLIENT_ID and FOLIO_GITHUB_CLIENT_SECRET")
	}
	if cfg.githubAdminID == 0 {
		return fmt.Errorf("admin account ID is required: set FOLIO_GITHUB_ADMIN_ID to your numeric GitHub account ID")
	}
	if cfg.oauthRedirectURL == "" {
		return fmt.Errorf("OAuth redirect URL is required: set FOLIO_OAUTH_REDIRECT_URL")
	}
	if (cfg.jwtPrivateKeyPath == "") != (cfg.jwtPublicKeyPath == "") {
		return fmt.Errorf("JWT key paths must be set together: set both FOLIO_JWT_PRIVATE_KEY and FOLIO_JWT_PUBLIC_KEY")
	}
	return nil
}

func buildLogger(level string) (*zap.Logger, error) {
	var cfg zap.Config

	switch level {
	case "debug":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return cfg.Build()
}

// gormLogLevel keeps GORM quiet unless the app itself runs at debug level.
func gormLogLevel(level string) gormlogger.LogLevel {
	if level == "debug" {
		return gormlogger.Info
	}
	return gormlogger.Warn
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envInt64OrDefault(key string, defaultVal int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return defaultVal
}

func envDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
