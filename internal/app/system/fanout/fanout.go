// Package fanout maintains student -> lecturer subscriptions and delivers
// inbox notifications.
//
// Writes are independent and eventually consistent: a subscription can
// exist without its NewSubscriber notification if the second write
// fails, and nothing compensates for that. Inbox reads are standing
// queries; every change to a user's notifications delivers the whole
// inbox again.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	notificationstore "github.com/dalemusser/tutorhub/internal/app/store/notifications"
	subscriptionstore "github.com/dalemusser/tutorhub/internal/app/store/subscriptions"
	userstore "github.com/dalemusser/tutorhub/internal/app/store/users"
	"github.com/dalemusser/tutorhub/internal/app/system/docstore"
	"github.com/dalemusser/tutorhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/tutorhub/internal/domain/models"
	"go.uber.org/zap"
)

// DefaultInboxLimit bounds the inbox when Options.InboxLimit is unset.
const DefaultInboxLimit = 50

var (
	// ErrSelfSubscription is returned when a user subscribes to themselves.
	ErrSelfSubscription = errors.New("fanout: cannot subscribe to yourself")
	// ErrMissingUser is returned when a required user id is empty.
	ErrMissingUser = errors.New("fanout: user id is required")
	// ErrNotOwner is returned when a user touches someone else's notification.
	ErrNotOwner = errors.New("fanout: notification belongs to another user")
)

// Toggle is the outcome of Subscribe.
type Toggle int

const (
	Subscribed Toggle = iota + 1
	Unsubscribed
)

func (t Toggle) String() string {
	switch t {
	case Subscribed:
		return "subscribed"
	case Unsubscribed:
		return "unsubscribed"
	}
	return "unknown"
}

// Options configures a Service.
type Options struct {
	// InboxLimit is the most notifications an inbox delivery carries.
	InboxLimit int64
}

// Service is the subscription and notification fan-out.
type Service struct {
	ds     docstore.Store
	healer *docstore.Healer
	subs   *subscriptionstore.Store
	notes  *notificationstore.Store
	users  *userstore.Store
	limit  int64
	log    *zap.Logger
}

// New creates a Service on ds.
func New(ds docstore.Store, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.InboxLimit <= 0 {
		opts.InboxLimit = DefaultInboxLimit
	}
	return &Service{
		ds:     ds,
		healer: docstore.NewHealer(ds, logger),
		subs:   subscriptionstore.New(ds, logger),
		notes:  notificationstore.New(ds),
		users:  userstore.New(ds),
		limit:  opts.InboxLimit,
		log:    logger,
	}
}

// Subscriptions exposes the edge store for listing.
func (s *Service) Subscriptions() *subscriptionstore.Store { return s.subs }

// InboxLimit is the configured inbox size.
func (s *Service) InboxLimit() int64 { return s.limit }

// Subscribe toggles the edge from studentID to lecturerID. With no edge
// it creates one and notifies the lecturer; otherwise it removes every
// edge between the pair.
func (s *Service) Subscribe(ctx context.Context, studentID, lecturerID string) (Toggle, error) {
	if studentID == "" || lecturerID == "" {
		return 0, ErrMissingUser
	}
	if studentID == lecturerID {
		return 0, ErrSelfSubscription
	}

	existing, err := s.subs.FindPair(ctx, studentID, lecturerID)
	if err != nil {
		return 0, fmt.Errorf("find subscription: %w", err)
	}
	if len(existing) > 0 {
		if err := s.deleteAll(ctx, existing); err != nil {
			return 0, err
		}
		return Unsubscribed, nil
	}

	sub, err := s.subs.Create(ctx, studentID, lecturerID)
	if err != nil {
		return 0, err
	}

	name := s.displayName(ctx, studentID, "A student")
	if _, nerr := s.Notify(ctx, models.Notification{
		UserID:  lecturerID,
		Type:    models.NotificationNewSubscriber,
		Title:   "New subscriber",
		Message: name + " subscribed to your updates.",
		Data:    map[string]string{"student_id": studentID, "subscription_id": sub.ID},
	}); nerr != nil {
		s.log.Warn("new subscriber notification dropped",
			zap.String("lecturer_id", lecturerID),
			zap.String("student_id", studentID),
			zap.Error(nerr))
	}
	return Subscribed, nil
}

// Unsubscribe removes every edge from studentID to lecturerID and
// reports whether there was one.
func (s *Service) Unsubscribe(ctx context.Context, studentID, lecturerID string) (bool, error) {
	if studentID == "" || lecturerID == "" {
		return false, ErrMissingUser
	}
	existing, err := s.subs.FindPair(ctx, studentID, lecturerID)
	if err != nil {
		return false, fmt.Errorf("find subscription: %w", err)
	}
	if len(existing) == 0 {
		return false, nil
	}
	return true, s.deleteAll(ctx, existing)
}

// IsSubscribed reports whether an edge exists from studentID to lecturerID.
func (s *Service) IsSubscribed(ctx context.Context, studentID, lecturerID string) (bool, error) {
	existing, err := s.subs.FindPair(ctx, studentID, lecturerID)
	if err != nil {
		return false, err
	}
	return len(existing) > 0, nil
}

// SetNotificationsEnabled switches lecturer notifications on or off for
// every edge from studentID to lecturerID.
func (s *Service) SetNotificationsEnabled(ctx context.Context, studentID, lecturerID string, enabled bool) error {
	existing, err := s.subs.FindPair(ctx, studentID, lecturerID)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return docstore.ErrNotFound
	}
	for _, sub := range existing {
		if err := s.subs.SetNotificationsEnabled(ctx, sub.ID, enabled); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) deleteAll(ctx context.Context, edges []models.Subscription) error {
	for _, sub := range edges {
		if err := s.subs.Delete(ctx, sub.ID); err != nil {
			return fmt.Errorf("delete subscription %s: %w", sub.ID, err)
		}
	}
	return nil
}

// Notify writes one notification. Title and message are reduced to
// plain text.
func (s *Service) Notify(ctx context.Context, n models.Notification) (models.Notification, error) {
	if n.UserID == "" {
		return models.Notification{}, ErrMissingUser
	}
	if !htmlsanitize.IsPlainText(n.Title) {
		n.Title = htmlsanitize.Text(n.Title)
	}
	if !htmlsanitize.IsPlainText(n.Message) {
		n.Message = htmlsanitize.Text(n.Message)
	}
	n.Title = strings.TrimSpace(n.Title)
	n.Message = strings.TrimSpace(n.Message)
	return s.notes.Create(ctx, n)
}

// MarkRead marks one notification read. Marking a read notification
// again is a no-op.
func (s *Service) MarkRead(ctx context.Context, id string) error {
	return s.notes.MarkRead(ctx, id)
}

// MarkReadFor is MarkRead after checking that userID owns the notification.
func (s *Service) MarkReadFor(ctx context.Context, userID, id string) error {
	n, err := s.notes.Get(ctx, id)
	if err != nil {
		return err
	}
	if n.UserID != userID {
		return ErrNotOwner
	}
	if n.IsRead {
		return nil
	}
	return s.notes.MarkRead(ctx, id)
}

// MarkAllRead marks every unread notification of userID read and
// returns how many it changed. A failure on one notification does not
// stop the others; the failures are returned joined.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	unread, err := s.notes.ListUnread(ctx, userID)
	if err != nil {
		return 0, err
	}
	var errs []error
	marked := 0
	for _, n := range unread {
		if err := s.notes.MarkRead(ctx, n.ID); err != nil {
			if docstore.IsNotFound(err) {
				continue
			}
			errs = append(errs, err)
			continue
		}
		marked++
	}
	return marked, errors.Join(errs...)
}

// Inbox runs the inbox query once.
func (s *Service) Inbox(ctx context.Context, userID string) (Inbox, error) {
	snap, err := s.healer.Query(ctx, notificationstore.InboxQuery(userID, s.limit))
	if err != nil {
		return Inbox{}, err
	}
	return decodeInbox(snap)
}

func (s *Service) displayName(ctx context.Context, userID, fallback string) string {
	u, err := s.users.Get(ctx, userID)
	if err != nil || u.DisplayName == "" {
		return fallback
	}
	return u.DisplayName
}
