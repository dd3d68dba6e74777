// internal/domain/models/notification.go
package models

import "time"

// NotificationType is the closed set of inbox event kinds.
type NotificationType string

const (
	NotificationNewSubscriber     NotificationType = "new_subscriber"
	NotificationQuestionAnswered  NotificationType = "question_answered"
	NotificationAssignmentCreated NotificationType = "assignment_created"
	NotificationMessageSent       NotificationType = "message_sent"
	NotificationRoleApproved      NotificationType = "role_approved"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationNewSubscriber, NotificationQuestionAnswered,
		NotificationAssignmentCreated, NotificationMessageSent,
		NotificationRoleApproved:
		return true
	}
	return false
}

// Icon returns the icon name the UI shows for t.
func (t NotificationType) Icon() string {
	switch t {
	case NotificationNewSubscriber:
		return "user-plus"
	case NotificationQuestionAnswered:
		return "message-circle"
	case NotificationAssignmentCreated:
		return "clipboard"
	case NotificationMessageSent:
		return "mail"
	case NotificationRoleApproved:
		return "shield-check"
	}
	return "bell"
}

// Priority orders notifications for display emphasis.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Notification is one inbox entry. IsRead only ever moves false -> true.
type Notification struct {
	ID        string            `bson:"_id" json:"id"`
	UserID    string            `bson:"user_id" json:"user_id"` // recipient
	Type      NotificationType  `bson:"type" json:"type"`
	Title     string            `bson:"title" json:"title"`
	Message   string            `bson:"message" json:"message"`
	IsRead    bool              `bson:"is_read" json:"is_read"`
	Priority  Priority          `bson:"priority" json:"priority"`
	CreatedAt time.Time         `bson:"created_at" json:"created_at"`
	Data      map[string]string `bson:"data,omitempty" json:"data,omitempty"`
}
