package auth

import (
	"context"
	"sort"
	"sync"

	"github.com/dalemusser/tutorhub/internal/app/system/identity"
	"go.uber.org/zap"
)

// Tracker owns the Session for one client. It listens to its provider's
// identity changes and, for each change, publishes a loading session
// followed by exactly one settled session. Changes are processed one at
// a time in the order the provider reports them.
//
// A Tracker is created per client (per request, per stream) and torn
// down with Close or SignOut.
type Tracker struct {
	provider identity.Provider
	resolver *Resolver
	log      *zap.Logger

	// events serializes identity-change processing.
	events sync.Mutex

	mu          sync.Mutex
	session     Session
	watchers    map[int]func(Session)
	nextID      int
	unsubscribe func()
	closed      bool
}

// NewTracker subscribes a new Tracker to p. The tracker starts in the
// loading state; call Start to settle it when no identity event is
// expected.
func NewTracker(p identity.Provider, resolver *Resolver, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{
		provider: p,
		resolver: resolver,
		log:      logger,
		session:  LoadingSession(nil),
		watchers: make(map[int]func(Session)),
	}
	t.unsubscribe = p.OnIdentityChanged(t.handle)
	return t
}

// Provider returns the identity provider the tracker listens to.
func (t *Tracker) Provider() identity.Provider { return t.provider }

// Start resolves the provider's current identity if no event has been
// processed yet. It is a no-op once the session has settled.
func (t *Tracker) Start(ctx context.Context) {
	if !t.Session().Loading {
		return
	}
	t.handle(ctx, t.provider.Current())
}

// Refresh reloads the current identity from the provider and resolves
// it again, e.g. after the email address was confirmed.
func (t *Tracker) Refresh(ctx context.Context) error {
	id, err := t.provider.ReloadIdentity(ctx)
	if err != nil {
		return err
	}
	t.handle(ctx, id)
	return nil
}

// Session returns the latest published session.
func (t *Tracker) Session() Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session
}

// Watch registers fn to receive every session published from now on.
// The returned function stops delivery and is safe to call more than once.
func (t *Tracker) Watch(fn func(Session)) (cancel func()) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return func() {}
	}
	t.nextID++
	key := t.nextID
	t.watchers[key] = fn
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.watchers, key)
			t.mu.Unlock()
		})
	}
}

// SignOut signs the client out, which publishes the signed-out session,
// and then closes the tracker.
func (t *Tracker) SignOut(ctx context.Context) error {
	err := t.provider.SignOut(ctx)
	t.Close()
	return err
}

// Close unsubscribes from the provider and drops all watchers. The last
// published session remains readable, and a resolution already under way
// still stores its settled session.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	unsubscribe := t.unsubscribe
	t.watchers = nil
	t.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (t *Tracker) handle(ctx context.Context, id *identity.Identity) {
	t.events.Lock()
	defer t.events.Unlock()

	if !t.publish(LoadingSession(id)) {
		return
	}
	s := t.resolver.Resolve(ctx, id)
	t.publish(s)

	t.log.Debug("session settled",
		zap.String("user_id", s.UserID()),
		zap.String("role", string(s.Role())))
}

// publish stores s and delivers it to the watchers in registration
// order. It reports false once the tracker is closed; a settled session
// is still stored then, so a close during resolution never leaves the
// tracker loading.
func (t *Tracker) publish(s Session) bool {
	t.mu.Lock()
	if t.closed {
		if !s.Loading {
			t.session = s
		}
		t.mu.Unlock()
		return false
	}
	t.session = s
	keys := make([]int, 0, len(t.watchers))
	for k := range t.watchers {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	fns := make([]func(Session), 0, len(keys))
	for _, k := range keys {
		fns = append(fns, t.watchers[k])
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
	return true
}
