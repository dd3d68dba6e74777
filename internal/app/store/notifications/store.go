package notificationstore

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/tutorhub/internal/app/system/docstore"
	"github.com/dalemusser/tutorhub/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

// Collection holds inbox entries.
const Collection = "notifications"

// Store manages notification records.
type Store struct {
	ds docstore.Store
}

// New creates a notification Store.
func New(ds docstore.Store) *Store {
	return &Store{ds: ds}
}

// Create stamps id, time and read state on n and writes it.
func (s *Store) Create(ctx context.Context, n models.Notification) (models.Notification, error) {
	if !n.Type.Valid() {
		return models.Notification{}, fmt.Errorf("notification type %q is not valid", n.Type)
	}
	n.ID = uuid.NewString()
	n.IsRead = false
	if n.Priority == "" {
		n.Priority = models.PriorityNormal
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if err := s.ds.Set(ctx, Collection, n.ID, n, docstore.Replace); err != nil {
		return models.Notification{}, fmt.Errorf("create notification: %w", err)
	}
	return n, nil
}

// Get loads one notification.
func (s *Store) Get(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	if err := s.ds.Get(ctx, Collection, id, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// MarkRead sets is_read on one notification.
func (s *Store) MarkRead(ctx context.Context, id string) error {
	return s.ds.Update(ctx, Collection, id, bson.M{"is_read": true})
}

// ListUnread returns every unread notification of userID.
func (s *Store) ListUnread(ctx context.Context, userID string) ([]models.Notification, error) {
	snap, err := s.ds.Query(ctx, docstore.Query{
		Collection: Collection,
		Filters: []docstore.Filter{
			docstore.Where("user_id", userID),
			docstore.Where("is_read", false),
		},
		OrderBy:    "created_at",
		Descending: true,
	})
	if err != nil {
		return nil, err
	}
	return docstore.DecodeAll[models.Notification](snap)
}

// InboxQuery is the standing query behind a user's inbox: newest first,
// at most limit entries (0 means all).
func InboxQuery(userID string, limit int64) docstore.Query {
	return docstore.Query{
		Collection: Collection,
		Filters:    []docstore.Filter{docstore.Where("user_id", userID)},
		OrderBy:    "created_at",
		Descending: true,
		Limit:      limit,
	}
}

// List runs the inbox query once.
func (s *Store) List(ctx context.Context, userID string, limit int64) ([]models.Notification, error) {
	snap, err := s.ds.Query(ctx, InboxQuery(userID, limit))
	if err != nil {
		return nil, err
	}
	return docstore.DecodeAll[models.Notification](snap)
}
