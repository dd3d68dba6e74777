// internal/app/store/oauthstate/store.go
package oauthstate

import (
	"context"
	"time"

	"github.com/dalemusser/tutorhub/internal/app/system/docstore"
)

// Collection holds pending federated sign-in states.
const Collection = "oauth_states"

// DefaultTTL is how long a user has to finish the provider's consent screen.
const DefaultTTL = 10 * time.Minute

// State is a one-time token binding a federated sign-in callback to the
// request that started it.
type State struct {
	State     string    `bson:"_id"`
	ReturnURL string    `bson:"return_url,omitempty"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}

// Store manages OAuth state tokens.
type Store struct {
	ds  docstore.Store
	now func() time.Time
}

// New creates a Store on ds.
func New(ds docstore.Store) *Store {
	return &Store{ds: ds, now: time.Now}
}

// Save records state with the page to return to after sign-in.
func (s *Store) Save(ctx context.Context, state, returnURL string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := s.now().UTC()
	return s.ds.Set(ctx, Collection, state, State{
		State:     state,
		ReturnURL: returnURL,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}, docstore.Replace)
}

// Consume deletes state and reports whether it was present and unexpired,
// returning its return URL.
func (s *Store) Consume(ctx context.Context, state string) (returnURL string, ok bool, err error) {
	if state == "" {
		return "", false, nil
	}
	var st State
	if err := s.ds.Get(ctx, Collection, state, &st); err != nil {
		if docstore.IsNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}
	if err := s.ds.Delete(ctx, Collection, state); err != nil {
		return "", false, err
	}
	if !s.now().Before(st.ExpiresAt) {
		return "", false, nil
	}
	return st.ReturnURL, true, nil
}

// CleanupExpired removes expired states and returns how many it removed.
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	snap, err := s.ds.Query(ctx, docstore.Query{
		Collection: Collection,
		Filters:    []docstore.Filter{{Field: "expires_at", Op: docstore.Lt, Value: s.now().UTC()}},
	})
	if err != nil {
		return 0, err
	}
	states, err := docstore.DecodeAll[State](snap)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, st := range states {
		if err := s.ds.Delete(ctx, Collection, st.State); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
