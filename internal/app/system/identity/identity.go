// Package identity is the identity-provider boundary.
//
// An identity is a verified-or-not email address with a stable id. The
// core never stores credentials itself; it asks a Provider to sign in,
// sign out, or create an identity, and listens for identity changes.
// Client is the Provider implementation used by the HTTP layer: one
// Client per browser session, all sharing one Directory that owns the
// credential records.
package identity

import (
	"context"
	"errors"
	"time"
)

// Identity is an authenticated principal as the provider reports it.
type Identity struct {
	ID            string    `bson:"_id" json:"id"`
	Email         string    `bson:"email" json:"email"`
	EmailVerified bool      `bson:"email_verified" json:"email_verified"`
	Provider      string    `bson:"provider" json:"provider"` // "password" or a federated provider name
	DisplayName   string    `bson:"display_name,omitempty" json:"display_name,omitempty"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
}

// Provider names.
const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
)

var (
	// ErrUnknownIdentity means no identity has the given email.
	ErrUnknownIdentity = errors.New("identity: unknown identity")
	// ErrInvalidCredential means the identity exists but the password is wrong.
	ErrInvalidCredential = errors.New("identity: invalid credential")
	// ErrEmailInUse means CreateIdentity was asked for an email that is taken.
	ErrEmailInUse = errors.New("identity: email already in use")
	// ErrWeakPassword means the password is shorter than MinPasswordLength.
	ErrWeakPassword = errors.New("identity: password too weak")
	// ErrInvalidEmail means the email address is malformed.
	ErrInvalidEmail = errors.New("identity: invalid email")
	// ErrNotSignedIn is returned by operations that need a current identity.
	ErrNotSignedIn = errors.New("identity: not signed in")
	// ErrUnsupportedProvider means no exchanger is registered for a federated provider.
	ErrUnsupportedProvider = errors.New("identity: unsupported provider")
	// ErrEmailUnverified means a federated provider did not vouch for the email.
	ErrEmailUnverified = errors.New("identity: federated email not verified")
	// ErrPasswordRequired means the email may only sign in with a password.
	ErrPasswordRequired = errors.New("identity: password sign-in required")
	// ErrVerificationInvalid means a verification token is unknown or already used.
	ErrVerificationInvalid = errors.New("identity: verification link invalid")
	// ErrVerificationExpired means a verification token is past its expiry.
	ErrVerificationExpired = errors.New("identity: verification link expired")
)

// MinPasswordLength is the shortest password CreateIdentity accepts.
const MinPasswordLength = 6

// Provider is the identity boundary the core depends on. Every method
// acts on behalf of one client session: SignIn and CreateIdentity make
// the returned identity current, SignOut clears it, and each change of
// the current identity is reported to OnIdentityChanged listeners in
// order.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*Identity, error)
	SignInFederated(ctx context.Context, provider, code string) (*Identity, error)
	SignOut(ctx context.Context) error
	// OnIdentityChanged registers fn and returns a function that
	// unregisters it. fn is called with nil after sign-out.
	OnIdentityChanged(fn func(ctx context.Context, id *Identity)) (unsubscribe func())
	CreateIdentity(ctx context.Context, email, password string) (*Identity, error)
	// SendVerificationEmail mails a confirmation link for the current identity.
	SendVerificationEmail(ctx context.Context) error
	// ReloadIdentity refreshes the current identity from the directory
	// (e.g. after the email was confirmed elsewhere).
	ReloadIdentity(ctx context.Context) (*Identity, error)
	// Restore makes the identity with the given id current without a
	// credential check. It is used to resume a session from a cookie.
	Restore(ctx context.Context, id string) (*Identity, error)
	Current() *Identity
}

// IsAuthFailure reports whether err is a credential or account error the
// user can correct, as opposed to an infrastructure failure.
func IsAuthFailure(err error) bool {
	for _, target := range []error{
		ErrUnknownIdentity, ErrInvalidCredential, ErrEmailInUse,
		ErrWeakPassword, ErrInvalidEmail, ErrNotSignedIn, ErrUnsupportedProvider,
		ErrEmailUnverified, ErrPasswordRequired, ErrVerificationInvalid, ErrVerificationExpired,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Reason returns the user-facing message for an identity error.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownIdentity):
		return "No account exists for that email address."
	case errors.Is(err, ErrInvalidCredential):
		return "Incorrect password."
	case errors.Is(err, ErrEmailInUse):
		return "An account with that email address already exists."
	case errors.Is(err, ErrWeakPassword):
		return "Password must be at least 6 characters."
	case errors.Is(err, ErrInvalidEmail):
		return "Enter a valid email address."
	case errors.Is(err, ErrNotSignedIn):
		return "Please sign in to continue."
	case errors.Is(err, ErrUnsupportedProvider):
		return "That sign-in method is not available."
	case errors.Is(err, ErrEmailUnverified):
		return "Your provider has not verified that email address."
	case errors.Is(err, ErrPasswordRequired):
		return "This account must sign in with email and password."
	case errors.Is(err, ErrVerificationInvalid):
		return "That verification link is not valid."
	case errors.Is(err, ErrVerificationExpired):
		return "That verification link has expired. Request a new one."
	}
	return "Sign-in failed. Please try again."
}
