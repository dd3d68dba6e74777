// internal/app/features/logout/handler.go
package logout

import (
	"net/http"

	"github.com/dalemusser/tutorhub/internal/app/system/auditlog"
	"github.com/dalemusser/tutorhub/internal/app/system/auth"
	"github.com/dalemusser/tutorhub/internal/app/system/navigation"
	"go.uber.org/zap"
)

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	AuditLog   *auditlog.Logger
}

func NewHandler(sessionMgr *auth.SessionManager, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
		AuditLog:   audit,
	}
}

// ServeLogout handles GET and POST /logout: it signs the identity out,
// which publishes the signed-out session, and expires the cookie.
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := auth.CurrentSession(r).UserID()

	if tracker := auth.TrackerFrom(ctx); tracker != nil {
		if err := tracker.SignOut(ctx); err != nil {
			h.Log.Warn("sign-out failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	if err := h.SessionMgr.Clear(w, r); err != nil {
		h.Log.Error("logout: clear session", zap.Error(err))
	}
	if userID != "" {
		h.AuditLog.Logout(ctx, r, userID)
	}

	// HTMX gets HX-Redirect so the whole page navigates home.
	if r.Header.Get("HX-Request") != "" {
		w.Header().Set("HX-Redirect", "/")
		w.WriteHeader(http.StatusOK)
		return
	}
	navigation.Redirect(w, r, "/")
}
