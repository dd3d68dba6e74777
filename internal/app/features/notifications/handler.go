// internal/app/features/notifications/handler.go
package notifications

import (
	"context"
	"errors"
	"net/http"
	"time"

	uierrors "github.com/dalemusser/tutorhub/internal/app/features/errors"
	"github.com/dalemusser/tutorhub/internal/app/system/auth"
	"github.com/dalemusser/tutorhub/internal/app/system/docstore"
	"github.com/dalemusser/tutorhub/internal/app/system/fanout"
	"github.com/dalemusser/tutorhub/internal/app/system/navigation"
	"github.com/dalemusser/tutorhub/internal/app/system/timeouts"
	"github.com/dalemusser/tutorhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// DefaultHeartbeat is the idle interval between SSE keep-alive comments.
const DefaultHeartbeat = 25 * time.Second

type Handler struct {
	Log       *zap.Logger
	ErrLog    *uierrors.ErrorLogger
	Fanout    *fanout.Service
	Heartbeat time.Duration
}

func NewHandler(fo *fanout.Service, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Log:       logger,
		ErrLog:    errLog,
		Fanout:    fo,
		Heartbeat: DefaultHeartbeat,
	}
}

// ServeList handles GET /notifications: the newest notifications of the
// signed-in user and the unread count among them.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	in, err := h.Fanout.Inbox(ctx, auth.CurrentSession(r).UserID())
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load inbox", err, "Could not load notifications.", "/dashboard")
		return
	}
	if in.Items == nil {
		in.Items = []models.Notification{}
	}
	uierrors.WriteJSON(w, http.StatusOK, in)
}

// HandleMarkRead handles POST /notifications/{id}/read.
func (h *Handler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	id := chi.URLParam(r, "id")
	err := h.Fanout.MarkReadFor(ctx, auth.CurrentSession(r).UserID(), id)
	switch {
	case err == nil:
	case docstore.IsNotFound(err):
		uierrors.RenderNotFound(w, r, "Notification not found.")
		return
	case errors.Is(err, fanout.ErrNotOwner):
		h.ErrLog.LogForbidden(w, r, "mark read on foreign notification", err,
			"You can only change your own notifications.", "/notifications")
		return
	default:
		h.ErrLog.LogServerError(w, r, "mark notification read", err, "Could not update the notification.", "/notifications")
		return
	}
	h.done(w, r, map[string]any{"state": "read", "id": id})
}

// HandleMarkAllRead handles POST /notifications/read-all.
func (h *Handler) HandleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	userID := auth.CurrentSession(r).UserID()
	n, err := h.Fanout.MarkAllRead(ctx, userID)
	if err != nil {
		// Partial progress is kept; report what failed.
		h.Log.Warn("mark all read incomplete", zap.String("user_id", userID), zap.Int("marked", n), zap.Error(err))
		uierrors.WriteJSON(w, http.StatusInternalServerError, map[string]any{
			"state":  "partial",
			"marked": n,
		})
		return
	}
	h.done(w, r, map[string]any{"state": "read", "marked": n})
}

// done answers a form post with a redirect to the return URL and any
// other caller with body.
func (h *Handler) done(w http.ResponseWriter, r *http.Request, body map[string]any) {
	if r.FormValue("return") != "" {
		navigation.Redirect(w, r, navigation.SafeBackURL(r, navigation.NotificationsBackURL))
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, body)
}
