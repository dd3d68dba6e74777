// internal/app/features/login/handler.go
package login

import (
	"context"
	"errors"
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/tutorhub/internal/app/features/errors"
	"github.com/dalemusser/tutorhub/internal/app/store/oauthstate"
	"github.com/dalemusser/tutorhub/internal/app/system/auditlog"
	"github.com/dalemusser/tutorhub/internal/app/system/auth"
	"github.com/dalemusser/tutorhub/internal/app/system/identity"
	"github.com/dalemusser/tutorhub/internal/app/system/navigation"
	"github.com/dalemusser/tutorhub/internal/app/system/ratelimit"
	"github.com/dalemusser/tutorhub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

type Handler struct {
	Log        *zap.Logger
	ErrLog     *uierrors.ErrorLogger
	SessionMgr *auth.SessionManager
	Auth       *auth.Authenticator
	Dir        *identity.Directory
	States     *oauthstate.Store
	AuditLog   *auditlog.Logger
	Limiter    *ratelimit.LoginLimiter
}

func NewHandler(
	sessionMgr *auth.SessionManager,
	authn *auth.Authenticator,
	dir *identity.Directory,
	states *oauthstate.Store,
	audit *auditlog.Logger,
	limiter *ratelimit.LoginLimiter,
	errLog *uierrors.ErrorLogger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Log:        logger,
		ErrLog:     errLog,
		SessionMgr: sessionMgr,
		Auth:       authn,
		Dir:        dir,
		States:     states,
		AuditLog:   audit,
		Limiter:    limiter,
	}
}

type loginView struct {
	State         string `json:"state"`
	Return        string `json:"return"`
	GoogleEnabled bool   `json:"google_enabled"`
	Error         string `json:"error,omitempty"`
}

// ServeLogin handles GET /login. A signed-in visitor is sent on to the
// return URL.
func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	ret := navigation.SafeBackURL(r, navigation.AfterLogin)
	if auth.CurrentSession(r).Authenticated() {
		navigation.Redirect(w, r, ret)
		return
	}
	_, google := h.Dir.Exchanger(identity.ProviderGoogle)
	uierrors.WriteJSON(w, http.StatusOK, loginView{
		State:         "signed_out",
		Return:        ret,
		GoogleEnabled: google,
		Error:         strings.TrimSpace(r.URL.Query().Get("error")),
	})
}

// HandleLoginPost handles POST /login. Allowlisted admin emails are
// signed in through the admin bootstrap; everyone else through the
// identity provider.
func (h *Handler) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse login form", err, "Invalid form submission.", "/login")
		return
	}
	email := identity.NormalizeEmail(r.FormValue("email"))
	password := r.FormValue("password")
	ret := navigation.SafeBackURL(r, navigation.AfterLogin)

	if h.Limiter != nil {
		if ok, msg := h.Limiter.Check(r, email); !ok {
			h.Log.Warn("login rate limited", zap.String("ip", ratelimit.ClientIP(r)))
			uierrors.WriteJSON(w, http.StatusTooManyRequests, uierrors.Body{State: "rate_limited", Message: msg, Next: "/login"})
			return
		}
	}
	if email == "" || password == "" {
		uierrors.RenderBadRequest(w, r, "Email and password are required.")
		return
	}

	tracker := auth.TrackerFrom(r.Context())
	if tracker == nil {
		h.ErrLog.LogServerError(w, r, "login outside session loader", nil, "Sign-in failed. Please try again.", "/login")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	res, err := h.Auth.SignIn(ctx, tracker.Provider(), email, password)
	if err != nil {
		if !identity.IsAuthFailure(err) {
			h.ErrLog.LogServerError(w, r, "sign-in failed", err, "Sign-in failed. Please try again.", "/login")
			return
		}
		if errors.Is(err, auth.ErrInvalidAdminCredentials) {
			h.AuditLog.AdminBootstrapRejected(ctx, r, email)
		} else {
			h.AuditLog.LoginFailed(ctx, r, email, identity.Reason(err))
		}
		uierrors.WriteJSON(w, http.StatusUnauthorized, uierrors.Body{
			State:   "invalid_credentials",
			Message: identity.Reason(err),
			Next:    "/login",
		})
		return
	}

	if err := h.SessionMgr.Persist(w, r, res.Identity.ID); err != nil {
		h.ErrLog.LogServerError(w, r, "persist session", err, "Sign-in failed. Please try again.", "/login")
		return
	}
	if h.Limiter != nil {
		h.Limiter.ResetEmail(email)
	}

	if res.Created {
		h.AuditLog.AdminBootstrapped(ctx, r, res.Identity.ID, email)
	} else {
		h.AuditLog.LoginSuccess(ctx, r, res.Identity.ID, identity.ProviderPassword, email)
	}
	navigation.Redirect(w, r, ret)
}
