// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"

	auditlogfeature "github.com/dalemusser/tutorhub/internal/app/features/auditlog"
	dashboardfeature "github.com/dalemusser/tutorhub/internal/app/features/dashboard"
	errorsfeature "github.com/dalemusser/tutorhub/internal/app/features/errors"
	healthfeature "github.com/dalemusser/tutorhub/internal/app/features/health"
	loginfeature "github.com/dalemusser/tutorhub/internal/app/features/login"
	logoutfeature "github.com/dalemusser/tutorhub/internal/app/features/logout"
	notificationsfeature "github.com/dalemusser/tutorhub/internal/app/features/notifications"
	profilefeature "github.com/dalemusser/tutorhub/internal/app/features/profile"
	publishfeature "github.com/dalemusser/tutorhub/internal/app/features/publish"
	signupfeature "github.com/dalemusser/tutorhub/internal/app/features/signup"
	subscriptionsfeature "github.com/dalemusser/tutorhub/internal/app/features/subscriptions"
	systemusersfeature "github.com/dalemusser/tutorhub/internal/app/features/systemusers"
	userinfofeature "github.com/dalemusser/tutorhub/internal/app/features/userinfo"
	verifyfeature "github.com/dalemusser/tutorhub/internal/app/features/verify"
	"github.com/dalemusser/tutorhub/internal/app/system/navigation"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// the Startup hook have completed, so deps.Services is populated.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	if deps.Services == nil || deps.Services.Sessions == nil {
		return nil, errors.New("build handler: services not initialized")
	}
	return newRouter(deps.Services, deps.MongoClient, logger), nil
}

// newRouter mounts every feature behind the session loader.
func newRouter(svc *Services, pinger healthfeature.Pinger, logger *zap.Logger) chi.Router {
	errLog := errorsfeature.NewErrorLogger(logger)

	r := chi.NewRouter()

	// Health check endpoint for load balancers and orchestrators. It sits
	// outside the session loader so probes never touch the identity store.
	r.Mount("/health", healthfeature.Routes(healthfeature.NewHandler(pinger, logger)))

	r.Group(func(r chi.Router) {
		// Resolves the cookie identity into a Session for every request.
		// Handlers read it via auth.CurrentSession(r).
		r.Use(svc.Sessions.Load)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			navigation.Redirect(w, r, "/dashboard")
		})

		// Authentication
		loginHandler := loginfeature.NewHandler(svc.Sessions, svc.Authn, svc.Dir, svc.States,
			svc.Audit, svc.Limiter, errLog, logger)
		r.Mount("/login", loginfeature.Routes(loginHandler))

		signupHandler := signupfeature.NewHandler(svc.Sessions, svc.Authn, svc.Users, svc.Audit,
			svc.Limiter, errLog, logger)
		r.Mount("/register", signupfeature.Routes(signupHandler))

		logoutHandler := logoutfeature.NewHandler(svc.Sessions, svc.Audit, logger)
		r.Mount("/logout", logoutfeature.Routes(logoutHandler))

		verifyHandler := verifyfeature.NewHandler(svc.Dir, svc.Audit, errLog, logger)
		r.Mount("/verify", verifyfeature.Routes(verifyHandler))

		// Error endpoints
		errorsHandler := errorsfeature.NewHandler()
		r.Get("/forbidden", errorsHandler.Forbidden)
		r.Get("/unauthorized", errorsHandler.Unauthorized)
		r.NotFound(errorsHandler.NotFound)

		// Role-based dashboards
		dashboardHandler := dashboardfeature.NewHandler(svc.Store, logger)
		r.Mount("/dashboard", dashboardfeature.Routes(dashboardHandler))

		// Subscriptions and the notification inbox
		subsHandler := subscriptionsfeature.NewHandler(svc.Fanout, svc.Users, errLog, logger)
		r.Mount("/subscriptions", subscriptionsfeature.Routes(subsHandler))

		notesHandler := notificationsfeature.NewHandler(svc.Fanout, errLog, logger)
		r.Mount("/notifications", notificationsfeature.Routes(notesHandler))

		// Domain events that fan out to subscribers
		publishHandler := publishfeature.NewHandler(svc.Fanout, svc.Users, errLog, logger)
		r.Mount("/publish", publishfeature.Routes(publishHandler))

		// Admin user management
		sysUsersHandler := systemusersfeature.NewHandler(svc.Users, svc.Fanout, errLog, svc.Audit, logger)
		r.Mount("/admin/users", systemusersfeature.Routes(sysUsersHandler))

		auditHandler := auditlogfeature.NewHandler(svc.Events, svc.Users, errLog, logger)
		r.Mount("/admin/audit", auditlogfeature.Routes(auditHandler))

		profileHandler := profilefeature.NewHandler(svc.Users, errLog, logger)
		r.Mount("/profile", profilefeature.Routes(profileHandler))

		userinfofeature.MountRoutes(r, userinfofeature.NewHandler())
	})

	return r
}
