// internal/domain/models/subscription.go
package models

import "time"

// Subscription is a directed edge from a student to a lecturer.
// Nothing enforces uniqueness of the (StudentID, LecturerID) pair.
type Subscription struct {
	ID                   string    `bson:"_id" json:"id"`
	StudentID            string    `bson:"student_id" json:"student_id"`
	LecturerID           string    `bson:"lecturer_id" json:"lecturer_id"`
	NotificationsEnabled bool      `bson:"notifications_enabled" json:"notifications_enabled"`
	CreatedAt            time.Time `bson:"created_at" json:"created_at"`
}
