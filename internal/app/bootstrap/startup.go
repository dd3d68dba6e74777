// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/tutorhub/internal/app/store/audit"
	"github.com/dalemusser/tutorhub/internal/app/store/oauthstate"
	userstore "github.com/dalemusser/tutorhub/internal/app/store/users"
	"github.com/dalemusser/tutorhub/internal/app/system/auditlog"
	"github.com/dalemusser/tutorhub/internal/app/system/auth"
	"github.com/dalemusser/tutorhub/internal/app/system/docstore"
	"github.com/dalemusser/tutorhub/internal/app/system/fanout"
	"github.com/dalemusser/tutorhub/internal/app/system/identity"
	"github.com/dalemusser/tutorhub/internal/app/system/mailer"
	"github.com/dalemusser/tutorhub/internal/app/system/ratelimit"
	"github.com/dalemusser/tutorhub/internal/app/system/timeouts"
	"github.com/dalemusser/tutorhub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Services are the long-lived components shared by every handler.
type Services struct {
	Store    docstore.Store
	Mailer   mailer.Mailer
	Dir      *identity.Directory
	Users    *userstore.Store
	Resolver *auth.Resolver
	Authn    *auth.Authenticator
	Sessions *auth.SessionManager
	Audit    *auditlog.Logger
	Events   *audit.Store
	Fanout   *fanout.Service
	States   *oauthstate.Store
	Limiter  *ratelimit.LoginLimiter
	Cleanup  *workers.Cleanup
}

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It builds
// the shared services and starts the cleanup worker.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.Services == nil {
		return errors.New("startup: DBDeps.Services is nil")
	}
	svc, err := buildServices(appCfg, coreCfg.Env == "prod", deps.Store, logger)
	if err != nil {
		return err
	}
	*deps.Services = *svc
	svc.Cleanup.Start()
	return nil
}

// buildServices wires every service on ds. Secure cookies are enabled in
// production mode.
func buildServices(appCfg AppConfig, secure bool, ds docstore.Store, logger *zap.Logger) (*Services, error) {
	exchangers := map[string]identity.Exchanger{}
	if appCfg.GoogleClientID != "" {
		redirect := strings.TrimRight(appCfg.BaseURL, "/") + "/login/google/callback"
		exchangers[identity.ProviderGoogle] = identity.NewGoogleExchanger(
			appCfg.GoogleClientID, appCfg.GoogleClientSecret, redirect)
		logger.Info("google sign-in enabled", zap.String("redirect_url", redirect))
	}

	// Allowlisted admins sign in only through the bootstrap secret.
	admins := auth.ParseAdminAllowlist(appCfg.AdminEmails)

	ml := mailer.NewLogMailer(logger.Named("mail"))
	dir := identity.NewDirectory(ds, identity.DirectoryConfig{
		SiteName:           appCfg.SiteName,
		BaseURL:            appCfg.BaseURL,
		VerificationExpiry: appCfg.VerificationExpiry,
		Mailer:             ml,
		Exchangers:         exchangers,
		PasswordOnly:       admins.Contains,
	}, logger.Named("identity"))

	users := userstore.New(ds)
	resolver := auth.NewResolver(users, admins, logger.Named("resolver"))

	sessions, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain,
		appCfg.SessionMaxAge, secure, dir, resolver, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	states := oauthstate.New(ds)
	events := audit.New(ds)

	limiter := ratelimit.NewLoginLimiter()
	if appCfg.LoginIPBurst > 0 && appCfg.LoginEmailBurst > 0 {
		limiter = ratelimit.NewLoginLimiterWithConfig(appCfg.LoginIPBurst, appCfg.LoginIPWindow,
			appCfg.LoginEmailBurst, appCfg.LoginEmailWindow)
	}

	interval := appCfg.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}
	cleanup := workers.NewCleanup(logger.Named("cleanup"), interval, timeouts.Long(),
		workers.Job{Name: "oauth_states", Run: states.CleanupExpired},
		workers.Job{Name: "identity_verifications", Run: dir.PurgeExpiredVerifications},
	)

	return &Services{
		Store:    ds,
		Mailer:   ml,
		Dir:      dir,
		Users:    users,
		Resolver: resolver,
		Authn:    auth.NewAuthenticator(users, admins, appCfg.AdminBootstrapSecret, logger),
		Sessions: sessions,
		Events:   events,
		Audit: auditlog.New(events, logger.Named("audit"), auditlog.Config{
			Auth:  appCfg.AuditLogAuth,
			Admin: appCfg.AuditLogAdmin,
		}),
		Fanout:  fanout.New(ds, fanout.Options{InboxLimit: appCfg.NotificationLimit}, logger.Named("fanout")),
		States:  states,
		Limiter: limiter,
		Cleanup: cleanup,
	}, nil
}
