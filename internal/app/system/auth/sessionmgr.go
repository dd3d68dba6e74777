package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dalemusser/tutorhub/internal/app/system/identity"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const identityIDKey = "identity_id"

// SessionManager carries the signed-in identity id in a signed cookie and
// builds a Tracker for every request.
type SessionManager struct {
	store    *sessions.CookieStore
	name     string
	dir      *identity.Directory
	resolver *Resolver
	log      *zap.Logger
}

// NewSessionManager creates a cookie-backed session manager. The `secure`
// flag controls whether cookies are marked Secure and which SameSite mode
// is used. A zero ttl leaves cookies as browser-session cookies.
func NewSessionManager(sessionKey, name, domain string, ttl time.Duration, secure bool,
	dir *identity.Directory, resolver *Resolver, logger *zap.Logger) (*SessionManager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide ≥32 random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}
	if name == "" {
		name = "tutorhub-session"
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	opts := &sessions.Options{
		Domain:   domain,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		MaxAge:   int(ttl / time.Second),
	}
	if secure {
		opts.SameSite = http.SameSiteNoneMode
	} else {
		opts.SameSite = http.SameSiteLaxMode
	}
	store.Options = opts

	logger.Info("session store initialized",
		zap.String("name", name),
		zap.Bool("secure", secure),
		zap.String("domain", domain),
		zap.Duration("ttl", ttl))

	return &SessionManager{store: store, name: name, dir: dir, resolver: resolver, log: logger}, nil
}

// Load restores the cookie's identity into a fresh Tracker, waits for
// its session to settle, and injects both into the request context. The
// tracker is closed when the handler returns.
func (m *SessionManager) Load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tracker := NewTracker(identity.NewClient(m.dir), m.resolver, m.log)
		defer tracker.Close()

		sess, err := m.store.Get(r, m.name)
		if err != nil {
			// A cookie signed with a rotated key or edited by hand decodes
			// to an empty session: the caller is signed out.
			if scErr, ok := err.(securecookie.Error); ok && scErr.IsDecode() {
				m.log.Debug("session cookie not decodable; treating as signed out", zap.Error(err))
			} else {
				m.log.Warn("session cookie read failed", zap.Error(err))
			}
		}
		if id, _ := sess.Values[identityIDKey].(string); id != "" {
			if _, err := tracker.Provider().Restore(ctx, id); err != nil {
				m.log.Debug("session identity not restored",
					zap.String("identity_id", id), zap.Error(err))
			}
		}
		tracker.Start(ctx)

		ctx = WithTracker(WithSession(ctx, tracker.Session()), tracker)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Persist records identityID in the session cookie.
func (m *SessionManager) Persist(w http.ResponseWriter, r *http.Request, identityID string) error {
	sess, _ := m.store.Get(r, m.name)
	sess.Values[identityIDKey] = identityID
	return sess.Save(r, w)
}

// Clear expires the session cookie.
func (m *SessionManager) Clear(w http.ResponseWriter, r *http.Request) error {
	sess, _ := m.store.Get(r, m.name)
	delete(sess.Values, identityIDKey)
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

const trackerKey ctxKey = "tracker"

// WithTracker returns a copy of ctx carrying t.
func WithTracker(ctx context.Context, t *Tracker) context.Context {
	return context.WithValue(ctx, trackerKey, t)
}

// TrackerFrom returns the request's tracker, or nil outside Load.
func TrackerFrom(ctx context.Context) *Tracker {
	t, _ := ctx.Value(trackerKey).(*Tracker)
	return t
}
