// internal/app/features/publish/handler.go
package publish

import (
	"context"
	"net/http"
	"strings"
	"time"

	uierrors "github.com/dalemusser/tutorhub/internal/app/features/errors"
	userstore "github.com/dalemusser/tutorhub/internal/app/store/users"
	"github.com/dalemusser/tutorhub/internal/app/system/auth"
	"github.com/dalemusser/tutorhub/internal/app/system/docstore"
	"github.com/dalemusser/tutorhub/internal/app/system/fanout"
	"github.com/dalemusser/tutorhub/internal/app/system/inputval"
	"github.com/dalemusser/tutorhub/internal/app/system/normalize"
	"github.com/dalemusser/tutorhub/internal/app/system/timeouts"
	"github.com/dalemusser/tutorhub/internal/domain/models"
	"github.com/google/uuid"
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

type assignmentInput struct {
	Title string `form:"title" validate:"required,max=200" label:"Title"`
	DueAt string `form:"due_at" validate:"omitempty,datetime=2006-01-02|datetime=2006-01-02T15:04:05Z07:00" label:"Due date"`
}

type answerInput struct {
	StudentID     string `form:"student_id" validate:"required" label:"Student"`
	QuestionID    string `form:"question_id" validate:"required" label:"Question"`
	QuestionTitle string `form:"question_title" validate:"required,max=200" label:"Question title"`
}

type messageInput struct {
	ToID string `form:"to_id" validate:"required" label:"Recipient"`
	Body string `form:"body" validate:"required,max=5000" label:"Message"`
}

// parseDue reads a date or an RFC 3339 timestamp. A bare date is due at
// the end of that day, UTC.
func parseDue(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.Add(24*time.Hour - time.Second)
	}
	return time.Time{}
}

// HandleAssignment handles POST /publish/assignments. Every subscribed
// student with notifications on for this lecturer is notified.
func (h *Handler) HandleAssignment(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse assignment form", err, "Invalid form submission.", "/dashboard")
		return
	}
	in := assignmentInput{
		Title: normalize.Name(r.PostFormValue("title")),
		DueAt: strings.TrimSpace(r.PostFormValue("due_at")),
	}
	if res := inputval.Validate(in); res.HasErrors() {
		uierrors.RenderValidation(w, r, res.First(), res.Fields())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	lecturerID := auth.CurrentSession(r).UserID()
	ev := fanout.AssignmentCreated{
		LecturerID:   lecturerID,
		AssignmentID: uuid.NewString(),
		Title:        in.Title,
		DueAt:        parseDue(in.DueAt),
	}
	sent, err := h.Fanout.AssignmentCreated(ctx, ev)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "fan out assignment", err, "The assignment could not be announced.", "/dashboard")
		return
	}
	h.Log.Info("assignment published",
		zap.String("lecturer_id", lecturerID),
		zap.String("assignment_id", ev.AssignmentID),
		zap.Int("notified", sent))
	uierrors.WriteJSON(w, http.StatusCreated, map[string]any{
		"state":         "published",
		"assignment_id": ev.AssignmentID,
		"notified":      sent,
	})
}

// HandleAnswer handles POST /publish/answers and notifies the student
// who asked.
func (h *Handler) HandleAnswer(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse answer form", err, "Invalid form submission.", "/dashboard")
		return
	}
	in := answerInput{
		StudentID:     strings.TrimSpace(r.PostFormValue("student_id")),
		QuestionID:    strings.TrimSpace(r.PostFormValue("question_id")),
		QuestionTitle: normalize.Name(r.PostFormValue("question_title")),
	}
	if res := inputval.Validate(in); res.HasErrors() {
		uierrors.RenderValidation(w, r, res.First(), res.Fields())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if _, ok := h.recipient(ctx, w, r, in.StudentID, models.RoleStudent); !ok {
		return
	}
	n, err := h.Fanout.QuestionAnswered(ctx, fanout.QuestionAnswered{
		StudentID:     in.StudentID,
		LecturerID:    auth.CurrentSession(r).UserID(),
		QuestionID:    in.QuestionID,
		QuestionTitle: in.QuestionTitle,
	})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "notify answer", err, "The student could not be notified.", "/dashboard")
		return
	}
	uierrors.WriteJSON(w, http.StatusCreated, map[string]any{"state": "notified", "notification_id": n.ID})
}

// HandleMessage handles POST /publish/messages.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse message form", err, "Invalid form submission.", "/dashboard")
		return
	}
	in := messageInput{
		ToID: strings.TrimSpace(r.PostFormValue("to_id")),
		Body: strings.TrimSpace(r.PostFormValue("body")),
	}
	if res := inputval.Validate(in); res.HasErrors() {
		uierrors.RenderValidation(w, r, res.First(), res.Fields())
		return
	}
	fromID := auth.CurrentSession(r).UserID()
	if in.ToID == fromID {
		uierrors.RenderBadRequest(w, r, "You cannot message yourself.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if _, ok := h.recipient(ctx, w, r, in.ToID, ""); !ok {
		return
	}
	n, err := h.Fanout.MessageSent(ctx, fanout.MessageSent{FromID: fromID, ToID: in.ToID, Preview: in.Body})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "notify message", err, "The message could not be delivered.", "/dashboard")
		return
	}
	uierrors.WriteJSON(w, http.StatusCreated, map[string]any{"state": "sent", "notification_id": n.ID})
}

type subscriberRow struct {
	StudentID            string    `json:"student_id"`
	DisplayName          string    `json:"display_name"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	Since                time.Time `json:"since"`
}

// ServeSubscribers handles GET /publish/subscribers: the signed-in
// lecturer's audience.
func (h *Handler) ServeSubscribers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	edges, err := h.Fanout.Subscriptions().ListByLecturer(ctx, auth.CurrentSession(r).UserID())
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list subscribers", err, "Could not load subscribers.", "/dashboard")
		return
	}
	rows := make([]subscriberRow, 0, len(edges))
	seen := make(map[string]bool, len(edges))
	for _, e := range edges {
		if seen[e.StudentID] {
			continue
		}
		seen[e.StudentID] = true
		row := subscriberRow{StudentID: e.StudentID, NotificationsEnabled: e.NotificationsEnabled, Since: e.CreatedAt}
		if u, err := h.Users.Get(ctx, e.StudentID); err == nil {
			row.DisplayName = u.DisplayName
		}
		rows = append(rows, row)
	}
	uierrors.WriteJSON(w, http.StatusOK, map[string]any{"subscribers": rows, "count": len(rows)})
}

// recipient loads an active user, optionally of role, and writes a 404
// when there is none.
func (h *Handler) recipient(ctx context.Context, w http.ResponseWriter, r *http.Request, id string, role models.Role) (*models.User, bool) {
	u, err := h.Users.Get(ctx, id)
	if err != nil {
		if docstore.IsNotFound(err) {
			uierrors.RenderNotFound(w, r, "Recipient not found.")
			return nil, false
		}
		h.ErrLog.LogServerError(w, r, "load recipient", err, "Could not load the recipient.", "/dashboard")
		return nil, false
	}
	if !u.IsActive || (role != "" && u.EffectiveRole() != role) {
		uierrors.RenderNotFound(w, r, "Recipient not found.")
		return nil, false
	}
	return u, true
}
