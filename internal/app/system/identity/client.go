package identity

import (
	"context"
	"sort"
	"sync"
)

// Client is a Provider bound to one client session. It tracks the
// current identity and notifies its listeners whenever that changes.
// Listeners run on the goroutine that caused the change, one event at a
// time and in the order the changes happened.
type Client struct {
	dir *Directory

	mu        sync.Mutex
	current   *Identity
	listeners map[int]func(context.Context, *Identity)
	nextID    int

	// dispatch serializes listener notification so events are seen in order.
	dispatch sync.Mutex
}

var _ Provider = (*Client)(nil)

// NewClient returns a signed-out Client on dir.
func NewClient(dir *Directory) *Client {
	return &Client{dir: dir, listeners: make(map[int]func(context.Context, *Identity))}
}

// Current implements Provider.
func (c *Client) Current() *Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyIdentity(c.current)
}

// SignIn implements Provider.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	id, err := c.dir.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.set(ctx, id)
	return copyIdentity(id), nil
}

// SignInFederated implements Provider.
func (c *Client) SignInFederated(ctx context.Context, provider, code string) (*Identity, error) {
	id, err := c.dir.Federated(ctx, provider, code)
	if err != nil {
		return nil, err
	}
	c.set(ctx, id)
	return copyIdentity(id), nil
}

// CreateIdentity implements Provider. The new identity becomes current.
func (c *Client) CreateIdentity(ctx context.Context, email, password string) (*Identity, error) {
	id, err := c.dir.Create(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.set(ctx, id)
	return copyIdentity(id), nil
}

// SignOut implements Provider. Signing out while signed out is a no-op.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	was := c.current
	c.mu.Unlock()
	if was == nil {
		return nil
	}
	c.set(ctx, nil)
	return nil
}

// Restore implements Provider.
func (c *Client) Restore(ctx context.Context, id string) (*Identity, error) {
	ident, err := c.dir.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	c.set(ctx, ident)
	return copyIdentity(ident), nil
}

// ReloadIdentity implements Provider. It does not notify listeners; the
// caller decides whether the refreshed identity warrants re-resolution.
func (c *Client) ReloadIdentity(ctx context.Context) (*Identity, error) {
	cur := c.Current()
	if cur == nil {
		return nil, ErrNotSignedIn
	}
	fresh, err := c.dir.Lookup(ctx, cur.ID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.current != nil && c.current.ID == fresh.ID {
		c.current = fresh
	}
	c.mu.Unlock()
	return copyIdentity(fresh), nil
}

// SendVerificationEmail implements Provider.
func (c *Client) SendVerificationEmail(ctx context.Context) error {
	cur := c.Current()
	if cur == nil {
		return ErrNotSignedIn
	}
	return c.dir.SendVerification(ctx, cur)
}

// OnIdentityChanged implements Provider.
func (c *Client) OnIdentityChanged(fn func(context.Context, *Identity)) func() {
	c.mu.Lock()
	c.nextID++
	key := c.nextID
	c.listeners[key] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, key)
			c.mu.Unlock()
		})
	}
}

func (c *Client) set(ctx context.Context, id *Identity) {
	c.dispatch.Lock()
	defer c.dispatch.Unlock()

	c.mu.Lock()
	c.current = id
	keys := make([]int, 0, len(c.listeners))
	for k := range c.listeners {
		keys = append(keys, k)
	}
	fns := make([]func(context.Context, *Identity), 0, len(keys))
	sort.Ints(keys)
	for _, k := range keys {
		fns = append(fns, c.listeners[k])
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(ctx, copyIdentity(id))
	}
}

func copyIdentity(id *Identity) *Identity {
	if id == nil {
		return nil
	}
	out := *id
	return &out
}
