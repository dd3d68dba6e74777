// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/tutorhub/internal/app/system/auth"
	"github.com/dalemusser/tutorhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for TutorHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: TUTORHUB_MONGO_URI, TUTORHUB_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "tutorhub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "tutorhub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "0s", Desc: "Session cookie lifetime (0 keeps browser-session cookies)"},

	// Admin bootstrap
	{Name: "admin_emails", Default: "", Desc: "Comma-separated emails that are always admins"},
	{Name: "admin_bootstrap_secret", Default: "", Desc: "Password accepted on an allowlisted admin's first sign-in (blank disables)"},

	// Site
	{Name: "site_name", Default: "TutorHub", Desc: "Site name used in email"},
	{Name: "base_url", Default: "http://localhost:3000", Desc: "Base URL for email links and OAuth callbacks"},
	{Name: "verification_expiry", Default: "24h", Desc: "Email verification link expiry (e.g., 30m, 24h)"},
	{Name: "notification_limit", Default: 50, Desc: "Most notifications returned in an inbox"},

	// Google OAuth configuration
	{Name: "google_client_id", Default: "", Desc: "Google OAuth2 client ID"},
	{Name: "google_client_secret", Default: "", Desc: "Google OAuth2 client secret"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Timeouts
	{Name: "timeout_ping", Default: "2s", Desc: "Health-check ping deadline"},
	{Name: "timeout_short", Default: "5s", Desc: "Single-document read/write deadline"},
	{Name: "timeout_medium", Default: "10s", Desc: "Sign-in and list query deadline"},
	{Name: "timeout_long", Default: "30s", Desc: "Fan-out deadline"},

	// Rate limits
	{Name: "login_ip_burst", Default: 10, Desc: "Sign-in attempts per IP per window"},
	{Name: "login_ip_window", Default: "1m", Desc: "Per-IP sign-in window"},
	{Name: "login_email_burst", Default: 5, Desc: "Sign-in attempts per email per window"},
	{Name: "login_email_window", Default: "5m", Desc: "Per-email sign-in window"},

	{Name: "cleanup_interval", Default: "1h", Desc: "How often expired tokens and OAuth states are purged"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, TUTORHUB_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "TUTORHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 0),

		AdminEmails:          appValues.String("admin_emails"),
		AdminBootstrapSecret: appValues.String("admin_bootstrap_secret"),

		SiteName:           appValues.String("site_name"),
		BaseURL:            appValues.String("base_url"),
		VerificationExpiry: appValues.Duration("verification_expiry", 24*time.Hour),
		NotificationLimit:  int64(appValues.Int("notification_limit")),

		GoogleClientID:     appValues.String("google_client_id"),
		GoogleClientSecret: appValues.String("google_client_secret"),

		AuditLogAuth:  appValues.String("audit_log_auth"),
		AuditLogAdmin: appValues.String("audit_log_admin"),

		TimeoutPing:   appValues.Duration("timeout_ping", 0),
		TimeoutShort:  appValues.Duration("timeout_short", 0),
		TimeoutMedium: appValues.Duration("timeout_medium", 0),
		TimeoutLong:   appValues.Duration("timeout_long", 0),

		LoginIPBurst:     appValues.Int("login_ip_burst"),
		LoginIPWindow:    appValues.Duration("login_ip_window", time.Minute),
		LoginEmailBurst:  appValues.Int("login_email_burst"),
		LoginEmailWindow: appValues.Duration("login_email_window", 5*time.Minute),

		CleanupInterval: appValues.Duration("cleanup_interval", time.Hour),
	}

	timeouts.Configure(timeouts.Config{
		Ping:   appCfg.TimeoutPing,
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
		Long:   appCfg.TimeoutLong,
	})

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if appCfg.MongoDatabase == "" {
		return fmt.Errorf("mongo_database is required")
	}
	if appCfg.SessionKey == "" {
		return fmt.Errorf("session_key is required")
	}
	if coreCfg != nil && coreCfg.Env == "prod" && len(appCfg.SessionKey) < 32 {
		return fmt.Errorf("session_key must be at least 32 characters in prod")
	}
	if appCfg.NotificationLimit <= 0 {
		return fmt.Errorf("notification_limit must be positive")
	}
	if (appCfg.GoogleClientID == "") != (appCfg.GoogleClientSecret == "") {
		return fmt.Errorf("google_client_id and google_client_secret must be set together")
	}

	admins := auth.ParseAdminAllowlist(appCfg.AdminEmails)
	if len(admins) == 0 {
		logger.Warn("admin_emails is empty; no account can reach the admin role")
	} else if appCfg.AdminBootstrapSecret == "" {
		logger.Warn("admin_bootstrap_secret is empty; allowlisted admins cannot sign in until they have an identity")
	}
	return nil
}
