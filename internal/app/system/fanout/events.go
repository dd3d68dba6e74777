package fanout

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/tutorhub/internal/domain/models"
	"go.uber.org/zap"
)

// QuestionAnswered is raised when a lecturer answers a student's question.
type QuestionAnswered struct {
	StudentID     string
	LecturerID    string
	QuestionID    string
	QuestionTitle string
}

// AssignmentCreated is raised when a lecturer publishes an assignment.
type AssignmentCreated struct {
	LecturerID   string
	AssignmentID string
	Title        string
	DueAt        time.Time // zero when there is no due date
}

// MessageSent is raised when one user messages another.
type MessageSent struct {
	FromID  string
	ToID    string
	Preview string
}

// previewLimit bounds the message excerpt copied into a notification.
const previewLimit = 140

// QuestionAnswered notifies the student who asked.
func (s *Service) QuestionAnswered(ctx context.Context, ev QuestionAnswered) (models.Notification, error) {
	name := s.displayName(ctx, ev.LecturerID, "Your lecturer")
	return s.Notify(ctx, models.Notification{
		UserID:  ev.StudentID,
		Type:    models.NotificationQuestionAnswered,
		Title:   "Your question was answered",
		Message: fmt.Sprintf("%s answered %q.", name, ev.QuestionTitle),
		Data:    map[string]string{"question_id": ev.QuestionID, "lecturer_id": ev.LecturerID},
	})
}

// AssignmentCreated notifies every student subscribed to the lecturer
// with notifications enabled and returns how many were notified.
// Failures for single students are logged and skipped.
func (s *Service) AssignmentCreated(ctx context.Context, ev AssignmentCreated) (int, error) {
	edges, err := s.subs.ListNotifiable(ctx, ev.LecturerID)
	if err != nil {
		return 0, fmt.Errorf("list subscribers: %w", err)
	}

	name := s.displayName(ctx, ev.LecturerID, "Your lecturer")
	msg := fmt.Sprintf("%s posted %q.", name, ev.Title)
	priority := models.PriorityNormal
	if !ev.DueAt.IsZero() {
		msg = fmt.Sprintf("%s posted %q, due %s.", name, ev.Title, ev.DueAt.UTC().Format("Jan 2, 2006"))
		if time.Until(ev.DueAt) < 48*time.Hour {
			priority = models.PriorityHigh
		}
	}

	seen := make(map[string]bool, len(edges))
	sent := 0
	for _, e := range edges {
		if seen[e.StudentID] {
			continue
		}
		seen[e.StudentID] = true
		_, nerr := s.Notify(ctx, models.Notification{
			UserID:   e.StudentID,
			Type:     models.NotificationAssignmentCreated,
			Title:    "New assignment",
			Message:  msg,
			Priority: priority,
			Data:     map[string]string{"assignment_id": ev.AssignmentID, "lecturer_id": ev.LecturerID},
		})
		if nerr != nil {
			s.log.Warn("assignment notification dropped",
				zap.String("student_id", e.StudentID),
				zap.String("assignment_id", ev.AssignmentID),
				zap.Error(nerr))
			continue
		}
		sent++
	}
	return sent, nil
}

// MessageSent notifies the recipient.
func (s *Service) MessageSent(ctx context.Context, ev MessageSent) (models.Notification, error) {
	name := s.displayName(ctx, ev.FromID, "Someone")
	preview := []rune(ev.Preview)
	if len(preview) > previewLimit {
		preview = append(preview[:previewLimit], '…')
	}
	return s.Notify(ctx, models.Notification{
		UserID:  ev.ToID,
		Type:    models.NotificationMessageSent,
		Title:   "New message from " + name,
		Message: string(preview),
		Data:    map[string]string{"from_id": ev.FromID},
	})
}

// RoleApproved tells a user their requested role was granted.
func (s *Service) RoleApproved(ctx context.Context, userID string, role models.Role) (models.Notification, error) {
	return s.Notify(ctx, models.Notification{
		UserID:   userID,
		Type:     models.NotificationRoleApproved,
		Title:    "Account approved",
		Message:  fmt.Sprintf("You now have %s access.", role),
		Priority: models.PriorityHigh,
		Data:     map[string]string{"role": string(role)},
	})
}
