package metricsstore

import (
	"context"

	notificationstore "github.com/dalemusser/tutorhub/internal/app/store/notifications"
	subscriptionstore "github.com/dalemusser/tutorhub/internal/app/store/subscriptions"
	userstore "github.com/dalemusser/tutorhub/internal/app/store/users"
	"github.com/dalemusser/tutorhub/internal/app/system/docstore"
	"github.com/dalemusser/tutorhub/internal/domain/models"
)

// Counts is the set of totals shown on the admin dashboard.
type Counts struct {
	Admins        int `json:"admins"`
	Lecturers     int `json:"lecturers"`
	Students      int `json:"students"`
	Pending       int `json:"pending"`
	Subscriptions int `json:"subscriptions"`
}

// UserCounts are the totals shown on a lecturer or student dashboard.
type UserCounts struct {
	Subscribers   int `json:"subscribers,omitempty"`   // lecturers
	Subscriptions int `json:"subscriptions,omitempty"` // students
	Unread        int `json:"unread"`
}

func count(ctx context.Context, ds docstore.Store, collection string, filters ...docstore.Filter) int {
	snap, err := ds.Query(ctx, docstore.Query{Collection: collection, Filters: filters})
	if err != nil {
		return 0
	}
	return snap.Len()
}

// FetchDashboardCounts returns the high-level counts used by the admin
// dashboard. Intentionally tolerant: on error it returns 0 for that counter.
func FetchDashboardCounts(ctx context.Context, ds docstore.Store) Counts {
	byRole := func(role models.Role) int {
		return count(ctx, ds, userstore.Collection, docstore.Where("role", role))
	}
	return Counts{
		Admins:        byRole(models.RoleAdmin),
		Lecturers:     byRole(models.RoleLecturer),
		Students:      byRole(models.RoleStudent),
		Pending:       byRole(models.RolePending),
		Subscriptions: count(ctx, ds, subscriptionstore.Collection),
	}
}

// FetchLecturerCounts returns a lecturer's subscriber edges and unread
// notifications, with the same tolerance as FetchDashboardCounts.
func FetchLecturerCounts(ctx context.Context, ds docstore.Store, lecturerID string) UserCounts {
	return UserCounts{
		Subscribers: count(ctx, ds, subscriptionstore.Collection, docstore.Where("lecturer_id", lecturerID)),
		Unread:      unread(ctx, ds, lecturerID),
	}
}

// FetchStudentCounts returns a student's subscriptions and unread notifications.
func FetchStudentCounts(ctx context.Context, ds docstore.Store, studentID string) UserCounts {
	return UserCounts{
		Subscriptions: count(ctx, ds, subscriptionstore.Collection, docstore.Where("student_id", studentID)),
		Unread:        unread(ctx, ds, studentID),
	}
}

func unread(ctx context.Context, ds docstore.Store, userID string) int {
	return count(ctx, ds, notificationstore.Collection,
		docstore.Where("user_id", userID), docstore.Where("is_read", false))
}
