// internal/app/features/subscriptions/handler.go
package subscriptions

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/tutorhub/internal/app/features/errors"
	userstore "github.com/dalemusser/tutorhub/internal/app/store/users"
	"github.com/dalemusser/tutorhub/internal/app/system/auth"
	"github.com/dalemusser/tutorhub/internal/app/system/docstore"
	"github.com/dalemusser/tutorhub/internal/app/system/fanout"
	"github.com/dalemusser/tutorhub/internal/app/system/navigation"
	"github.com/dalemusser/tutorhub/internal/app/system/normalize"
	"github.com/dalemusser/tutorhub/internal/app/system/timeouts"
	"github.com/dalemusser/tutorhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	Log    *zap.Logger
	ErrLog *uierrors.ErrorLogger
	Fanout *fanout.Service
	Users  *userstore.Store
}

func NewHandler(fo *fanout.Service, users *userstore.Store, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Log: logger, ErrLog: errLog, Fanout: fo, Users: users}
}

type subscriptionRow struct {
	ID                   string `json:"id"`
	LecturerID           string `json:"lecturer_id"`
	LecturerName         string `json:"lecturer_name"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
}

type lecturerRow struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Subscribed  bool   `json:"subscribed"`
}

// ServeList handles GET /subscriptions: the student's lecturers.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	subs, err := h.Fanout.Subscriptions().ListByStudent(ctx, auth.CurrentSession(r).UserID())
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list subscriptions", err, "Could not load your subscriptions.", "/dashboard")
		return
	}

	rows := make([]subscriptionRow, 0, len(subs))
	names := map[string]string{}
	for _, s := range subs {
		name, ok := names[s.LecturerID]
		if !ok {
			name = "Unknown lecturer"
			if u, err := h.Users.Get(ctx, s.LecturerID); err == nil {
				name = u.DisplayName
			}
			names[s.LecturerID] = name
		}
		rows = append(rows, subscriptionRow{
			ID:                   s.ID,
			LecturerID:           s.LecturerID,
			LecturerName:         name,
			NotificationsEnabled: s.NotificationsEnabled,
		})
	}
	uierrors.WriteJSON(w, http.StatusOK, map[string]any{"subscriptions": rows})
}

// ServeLecturers handles GET /subscriptions/lecturers: every lecturer,
// flagged with whether the student follows them.
func (h *Handler) ServeLecturers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	lecturers, err := h.Users.ListByRole(ctx, models.RoleLecturer)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list lecturers", err, "Could not load lecturers.", "/subscriptions")
		return
	}
	subs, err := h.Fanout.Subscriptions().ListByStudent(ctx, auth.CurrentSession(r).UserID())
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list subscriptions", err, "Could not load lecturers.", "/subscriptions")
		return
	}
	following := make(map[string]bool, len(subs))
	for _, s := range subs {
		following[s.LecturerID] = true
	}

	rows := make([]lecturerRow, 0, len(lecturers))
	for _, u := range lecturers {
		if !u.IsActive {
			continue
		}
		rows = append(rows, lecturerRow{ID: u.ID, DisplayName: u.DisplayName, Subscribed: following[u.ID]})
	}
	uierrors.WriteJSON(w, http.StatusOK, map[string]any{"lecturers": rows})
}

// lecturer loads the {lecturerID} route target and writes a 404 unless it
// is an active lecturer.
func (h *Handler) lecturer(ctx context.Context, w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	u, err := h.Users.Get(ctx, chi.URLParam(r, "lecturerID"))
	if err != nil {
		if docstore.IsNotFound(err) {
			uierrors.RenderNotFound(w, r, "Lecturer not found.")
			return nil, false
		}
		h.ErrLog.LogServerError(w, r, "load lecturer", err, "Could not update the subscription.", "/subscriptions")
		return nil, false
	}
	if u.EffectiveRole() != models.RoleLecturer || !u.IsActive {
		uierrors.RenderNotFound(w, r, "Lecturer not found.")
		return nil, false
	}
	return u, true
}

// HandleToggle handles POST /subscriptions/{lecturerID}/toggle.
func (h *Handler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	lec, ok := h.lecturer(ctx, w, r)
	if !ok {
		return
	}
	studentID := auth.CurrentSession(r).UserID()
	res, err := h.Fanout.Subscribe(ctx, studentID, lec.ID)
	if err != nil {
		if errors.Is(err, fanout.ErrSelfSubscription) {
			uierrors.RenderBadRequest(w, r, "You cannot subscribe to yourself.")
			return
		}
		h.ErrLog.LogServerError(w, r, "toggle subscription", err, "Could not update the subscription.", "/subscriptions")
		return
	}
	h.Log.Info("subscription toggled",
		zap.String("student_id", studentID),
		zap.String("lecturer_id", lec.ID),
		zap.Stringer("result", res))
	h.done(w, r, map[string]any{"state": res.String(), "lecturer_id": lec.ID})
}

// HandleUnsubscribe handles POST /subscriptions/{lecturerID}/unsubscribe.
// It is idempotent.
func (h *Handler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	lecturerID := chi.URLParam(r, "lecturerID")
	removed, err := h.Fanout.Unsubscribe(ctx, auth.CurrentSession(r).UserID(), lecturerID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "unsubscribe", err, "Could not update the subscription.", "/subscriptions")
		return
	}
	h.done(w, r, map[string]any{"state": fanout.Unsubscribed.String(), "lecturer_id": lecturerID, "removed": removed})
}

// HandleNotifications handles POST /subscriptions/{lecturerID}/notifications
// with form field enabled.
func (h *Handler) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse notifications form", err, "Invalid form submission.", "/subscriptions")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	lecturerID := chi.URLParam(r, "lecturerID")
	enabled := normalize.Bool(r.PostFormValue("enabled"))
	err := h.Fanout.SetNotificationsEnabled(ctx, auth.CurrentSession(r).UserID(), lecturerID, enabled)
	if err != nil {
		if docstore.IsNotFound(err) {
			uierrors.RenderNotFound(w, r, "You are not subscribed to this lecturer.")
			return
		}
		h.ErrLog.LogServerError(w, r, "set subscription notifications", err, "Could not update the subscription.", "/subscriptions")
		return
	}
	h.done(w, r, map[string]any{"state": "updated", "lecturer_id": lecturerID, "notifications_enabled": enabled})
}

func (h *Handler) done(w http.ResponseWriter, r *http.Request, body map[string]any) {
	if r.FormValue("return") != "" {
		navigation.Redirect(w, r, navigation.SafeBackURL(r, navigation.SubscriptionsBackURL))
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, body)
}
