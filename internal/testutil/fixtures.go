package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/tutorhub/internal/app/system/docstore"
	"github.com/dalemusser/tutorhub/internal/app/system/docstore/memstore"
	"github.com/dalemusser/tutorhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// NewMemStore returns an empty in-memory document store.
func NewMemStore() *memstore.Store {
	return memstore.New()
}

// TestContext returns a context with a timeout suitable for test operations.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	ds docstore.Store
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance writing to ds.
func NewFixtures(t *testing.T, ds docstore.Store) *Fixtures {
	t.Helper()
	return &Fixtures{ds: ds, t: t}
}

// Store returns the underlying document store for direct access in tests.
func (f *Fixtures) Store() docstore.Store {
	return f.ds
}

// CreateUser writes a user record with the given role.
func (f *Fixtures) CreateUser(ctx context.Context, displayName, email string, role models.Role) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	u := models.User{
		ID:            uuid.NewString(),
		Email:         email,
		DisplayName:   displayName,
		DisplayNameCI: text.Fold(displayName),
		Role:          role,
		IsActive:      true,
		Level:         1,
		Preferences:   models.DefaultPreferences(),
		CreatedAt:     now,
		LastLoginAt:   now,
	}
	if err := f.ds.Set(ctx, "users", u.ID, u, docstore.Replace); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateAdmin creates an admin user.
func (f *Fixtures) CreateAdmin(ctx context.Context, displayName, email string) models.User {
	return f.CreateUser(ctx, displayName, email, models.RoleAdmin)
}

// CreateLecturer creates a lecturer user.
func (f *Fixtures) CreateLecturer(ctx context.Context, displayName, email string) models.User {
	return f.CreateUser(ctx, displayName, email, models.RoleLecturer)
}

// CreateStudent creates a student user.
func (f *Fixtures) CreateStudent(ctx context.Context, displayName, email string) models.User {
	return f.CreateUser(ctx, displayName, email, models.RoleStudent)
}

// CreatePending creates a pending user that asked for requested.
func (f *Fixtures) CreatePending(ctx context.Context, displayName, email string, requested models.Role) models.User {
	f.t.Helper()
	u := f.CreateUser(ctx, displayName, email, models.RolePending)
	u.RequestedRole = &requested
	if err := f.ds.Set(ctx, "users", u.ID, u, docstore.Replace); err != nil {
		f.t.Fatalf("failed to set requested role: %v", err)
	}
	return u
}

// CreateSubscription writes a student -> lecturer edge.
func (f *Fixtures) CreateSubscription(ctx context.Context, studentID, lecturerID string, notificationsEnabled bool) models.Subscription {
	f.t.Helper()

	sub := models.Subscription{
		ID:                   uuid.NewString(),
		StudentID:            studentID,
		LecturerID:           lecturerID,
		NotificationsEnabled: notificationsEnabled,
		CreatedAt:            time.Now().UTC(),
	}
	if err := f.ds.Set(ctx, "subscriptions", sub.ID, sub, docstore.Replace); err != nil {
		f.t.Fatalf("failed to create test subscription: %v", err)
	}
	return sub
}

// CreateNotification writes an unread notification for userID created at.
func (f *Fixtures) CreateNotification(ctx context.Context, userID, title string, at time.Time) models.Notification {
	f.t.Helper()

	n := models.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      models.NotificationMessageSent,
		Title:     title,
		Message:   title,
		Priority:  models.PriorityNormal,
		CreatedAt: at.UTC(),
	}
	if err := f.ds.Set(ctx, "notifications", n.ID, n, docstore.Replace); err != nil {
		f.t.Fatalf("failed to create test notification: %v", err)
	}
	return n
}
