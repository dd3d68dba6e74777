package fanout

import (
	"context"
	"sync"
	"sync/atomic"

	notificationstore "github.com/dalemusser/tutorhub/internal/app/store/notifications"
	"github.com/dalemusser/tutorhub/internal/app/system/docstore"
	"github.com/dalemusser/tutorhub/internal/domain/models"
	"go.uber.org/zap"
)

// Inbox is one delivery of a user's notifications, newest first. Unread
// counts the unread entries among Items.
type Inbox struct {
	Items  []models.Notification `json:"items"`
	Unread int                   `json:"unread"`
}

func decodeInbox(snap docstore.Snapshot) (Inbox, error) {
	items, err := docstore.DecodeAll[models.Notification](snap)
	if err != nil {
		return Inbox{}, err
	}
	in := Inbox{Items: items}
	for _, n := range items {
		if !n.IsRead {
			in.Unread++
		}
	}
	return in, nil
}

// Listener is a live inbox. It holds one standing query until Release.
type Listener struct {
	userID   string
	sub      docstore.Subscription
	once     sync.Once
	released atomic.Bool
}

// UserID is the inbox owner.
func (l *Listener) UserID() string { return l.userID }

// Release stops deliveries and frees the standing query. It is safe to
// call more than once.
func (l *Listener) Release() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		l.released.Store(true)
		if l.sub != nil {
			l.sub.Release()
		}
	})
}

// Listen opens a live inbox for userID. fn receives the current inbox
// before Listen returns when the backend delivers synchronously, and a
// full inbox after every change. Deliveries that fail to decode are
// logged and skipped.
func (s *Service) Listen(ctx context.Context, userID string, fn func(Inbox)) (*Listener, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	l := &Listener{userID: userID}
	sub, err := s.healer.Subscribe(ctx, notificationstore.InboxQuery(userID, s.limit), func(snap docstore.Snapshot) {
		if l.released.Load() {
			return
		}
		in, derr := decodeInbox(snap)
		if derr != nil {
			s.log.Warn("inbox delivery skipped", zap.String("user_id", userID), zap.Error(derr))
			return
		}
		fn(in)
	})
	if err != nil {
		return nil, err
	}
	l.sub = sub
	return l, nil
}

// WithListener opens a listener for userID, runs body, and releases the
// listener however body returns.
func (s *Service) WithListener(ctx context.Context, userID string, fn func(Inbox), body func(*Listener) error) error {
	l, err := s.Listen(ctx, userID, fn)
	if err != nil {
		return err
	}
	defer l.Release()
	return body(l)
}

// Scope keeps at most one listener, bound to the current scoping key
// (the signed-in user). Rebinding to a new key releases the old listener
// exactly once before opening the next; rebinding to the same key is a
// no-op.
type Scope struct {
	svc *Service
	fn  func(Inbox)

	mu     sync.Mutex
	key    string
	l      *Listener
	closed bool
}

// NewScope creates an unbound Scope delivering to fn.
func (s *Service) NewScope(fn func(Inbox)) *Scope {
	return &Scope{svc: s, fn: fn}
}

// Bind points the scope at userID. An empty userID releases the current
// listener and leaves the scope unbound.
func (sc *Scope) Bind(ctx context.Context, userID string) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.closed {
		return nil
	}
	if userID == sc.key && (sc.l != nil || userID == "") {
		return nil
	}
	sc.l.Release()
	sc.l, sc.key = nil, ""
	if userID == "" {
		return nil
	}
	l, err := sc.svc.Listen(ctx, userID, sc.fn)
	if err != nil {
		return err
	}
	sc.l, sc.key = l, userID
	return nil
}

// Key is the user the scope is bound to, or "".
func (sc *Scope) Key() string {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.key
}

// Close releases the current listener. Later Binds are ignored.
func (sc *Scope) Close() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.closed = true
	sc.l.Release()
	sc.l, sc.key = nil, ""
}
