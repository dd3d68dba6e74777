// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"github.com/dalemusser/tutorhub/internal/app/system/docstore"
	"github.com/google/uuid"
)

// Collection holds audit events.
const Collection = "audit_events"

// Event categories
const (
	CategoryAuth  = "auth"
	CategoryAdmin = "admin"
)

// Auth event types
const (
	EventLoginSuccess           = "login_success"
	EventLoginFailed            = "login_failed"
	EventFederatedLoginSuccess  = "federated_login_success"
	EventAdminBootstrapped      = "admin_bootstrapped"
	EventAdminBootstrapRejected = "admin_bootstrap_rejected"
	EventSignUp                 = "sign_up"
	EventLogout                 = "logout"
	EventVerificationSent       = "verification_sent"
	EventVerificationConfirmed  = "verification_confirmed"
	EventVerificationFailed     = "verification_failed"
)

// Admin event types
const (
	EventRoleApproved = "role_approved"
	EventUserUpdated  = "user_updated"
)

// Event represents an audit event.
type Event struct {
	ID        string    `bson:"_id"`
	Timestamp time.Time `bson:"timestamp"`

	// Event classification
	Category  string `bson:"category"`
	EventType string `bson:"event_type"`

	// Who
	UserID  string `bson:"user_id,omitempty"`  // affected user
	ActorID string `bson:"actor_id,omitempty"` // who performed action (for admin actions)

	// Context
	IP        string `bson:"ip"`
	UserAgent string `bson:"user_agent,omitempty"`

	// Outcome
	Success       bool   `bson:"success"`
	FailureReason string `bson:"failure_reason,omitempty"`

	// Additional details (varies by event type)
	Details map[string]string `bson:"details,omitempty"`
}

// QueryFilter defines filters for querying audit events.
type QueryFilter struct {
	UserID    string
	Category  string
	EventType string
	Limit     int64
}

// Store manages audit event records.
type Store struct {
	ds docstore.Store
}

// New creates a new audit Store.
func New(ds docstore.Store) *Store {
	return &Store{ds: ds}
}

// Log records an audit event.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return s.ds.Set(ctx, Collection, event.ID, event, docstore.Replace)
}

// Query retrieves audit events matching the given filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	var filters []docstore.Filter
	if filter.UserID != "" {
		filters = append(filters, docstore.Where("user_id", filter.UserID))
	}
	if filter.Category != "" {
		filters = append(filters, docstore.Where("category", filter.Category))
	}
	if filter.EventType != "" {
		filters = append(filters, docstore.Where("event_type", filter.EventType))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	snap, err := s.ds.Query(ctx, docstore.Query{
		Collection: Collection,
		Filters:    filters,
		OrderBy:    "timestamp",
		Descending: true,
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}
	return docstore.DecodeAll[Event](snap)
}

// GetByUser retrieves recent audit events for a specific user.
func (s *Store) GetByUser(ctx context.Context, userID string, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{UserID: userID, Limit: limit})
}

// GetRecent retrieves the most recent audit events.
func (s *Store) GetRecent(ctx context.Context, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{Limit: limit})
}
