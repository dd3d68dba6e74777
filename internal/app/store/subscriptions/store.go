package subscriptionstore

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/tutorhub/internal/app/system/docstore"
	"github.com/dalemusser/tutorhub/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// Collection holds student -> lecturer edges.
const Collection = "subscriptions"

// Store manages subscription edges. Reads go through a docstore.Healer
// because the collection may not exist until the first subscription.
type Store struct {
	ds     docstore.Store
	healer *docstore.Healer
}

// New creates a subscription Store.
func New(ds docstore.Store, logger *zap.Logger) *Store {
	return &Store{ds: ds, healer: docstore.NewHealer(ds, logger)}
}

// Create writes a new edge with notifications enabled.
func (s *Store) Create(ctx context.Context, studentID, lecturerID string) (models.Subscription, error) {
	sub := models.Subscription{
		ID:                   uuid.NewString(),
		StudentID:            studentID,
		LecturerID:           lecturerID,
		NotificationsEnabled: true,
		CreatedAt:            time.Now().UTC(),
	}
	if err := s.ds.Set(ctx, Collection, sub.ID, sub, docstore.Replace); err != nil {
		return models.Subscription{}, fmt.Errorf("create subscription: %w", err)
	}
	return sub, nil
}

// FindPair returns every edge from studentID to lecturerID, oldest first.
// More than one can exist since nothing enforces pair uniqueness.
func (s *Store) FindPair(ctx context.Context, studentID, lecturerID string) ([]models.Subscription, error) {
	snap, err := s.healer.Query(ctx, docstore.Query{
		Collection: Collection,
		Filters: []docstore.Filter{
			docstore.Where("student_id", studentID),
			docstore.Where("lecturer_id", lecturerID),
		},
		OrderBy: "created_at",
	})
	if err != nil {
		return nil, err
	}
	return docstore.DecodeAll[models.Subscription](snap)
}

// Delete removes one edge by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.ds.Delete(ctx, Collection, id)
}

// ListByStudent returns the lecturers a student follows, newest first.
func (s *Store) ListByStudent(ctx context.Context, studentID string) ([]models.Subscription, error) {
	return s.list(ctx, docstore.Where("student_id", studentID))
}

// ListByLecturer returns the students following a lecturer, newest first.
func (s *Store) ListByLecturer(ctx context.Context, lecturerID string) ([]models.Subscription, error) {
	return s.list(ctx, docstore.Where("lecturer_id", lecturerID))
}

// ListNotifiable returns the edges into lecturerID that still want
// notifications.
func (s *Store) ListNotifiable(ctx context.Context, lecturerID string) ([]models.Subscription, error) {
	return s.list(ctx,
		docstore.Where("lecturer_id", lecturerID),
		docstore.Where("notifications_enabled", true),
	)
}

// SetNotificationsEnabled flips the per-edge notification switch.
func (s *Store) SetNotificationsEnabled(ctx context.Context, id string, enabled bool) error {
	return s.ds.Update(ctx, Collection, id, bson.M{"notifications_enabled": enabled})
}

// Get loads one edge.
func (s *Store) Get(ctx context.Context, id string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := s.ds.Get(ctx, Collection, id, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *Store) list(ctx context.Context, filters ...docstore.Filter) ([]models.Subscription, error) {
	snap, err := s.healer.Query(ctx, docstore.Query{
		Collection: Collection,
		Filters:    filters,
		OrderBy:    "created_at",
		Descending: true,
	})
	if err != nil {
		return nil, err
	}
	return docstore.DecodeAll[models.Subscription](snap)
}
