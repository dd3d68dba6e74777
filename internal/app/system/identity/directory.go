package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dalemusser/tutorhub/internal/app/system/docstore"
	"github.com/dalemusser/tutorhub/internal/app/system/mailer"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Collections owned by the directory.
const (
	IdentitiesCollection    = "identities"
	VerificationsCollection = "identity_verifications"
)

// BcryptCost for hashing passwords.
const BcryptCost = 10

// DefaultVerificationExpiry is how long a verification link stays valid.
const DefaultVerificationExpiry = 24 * time.Hour

// credential is the stored form of an identity.
type credential struct {
	Identity     `bson:",inline"`
	PasswordHash string `bson:"password_hash,omitempty"`
	Subject      string `bson:"subject,omitempty"` // federated provider's user id
}

type verification struct {
	ID         string    `bson:"_id"` // the token
	IdentityID string    `bson:"identity_id"`
	Email      string    `bson:"email"`
	ExpiresAt  time.Time `bson:"expires_at"`
	CreatedAt  time.Time `bson:"created_at"`
}

// DirectoryConfig configures a Directory.
type DirectoryConfig struct {
	SiteName           string
	BaseURL            string // links in verification email start here
	VerificationExpiry time.Duration
	Mailer             mailer.Mailer
	Exchangers         map[string]Exchanger // federated providers by name
	// PasswordOnly reports emails that may not sign in through a
	// federated provider. Nil allows every email.
	PasswordOnly func(email string) bool
}

// Directory owns identity records and credentials. It is safe for
// concurrent use and is shared by every Client.
type Directory struct {
	ds  docstore.Store
	log *zap.Logger
	cfg DirectoryConfig
	now func() time.Time
}

// NewDirectory creates a Directory on ds.
func NewDirectory(ds docstore.Store, cfg DirectoryConfig, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.VerificationExpiry <= 0 {
		cfg.VerificationExpiry = DefaultVerificationExpiry
	}
	if cfg.Mailer == nil {
		cfg.Mailer = mailer.NewLogMailer(logger)
	}
	if cfg.SiteName == "" {
		cfg.SiteName = "TutorHub"
	}
	return &Directory{ds: ds, log: logger, cfg: cfg, now: time.Now}
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	if email == "" || strings.ContainsAny(email, " <>") {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// Authenticate checks an email/password pair.
func (d *Directory) Authenticate(ctx context.Context, email, password string) (*Identity, error) {
	cred, err := d.findByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if cred.PasswordHash == "" {
		// Federated-only identity.
		return nil, ErrInvalidCredential
	}
	if bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredential
	}
	id := cred.Identity
	return &id, nil
}

// Create registers a password identity.
func (d *Directory) Create(ctx context.Context, email, password string) (*Identity, error) {
	email = NormalizeEmail(email)
	if !validEmail(email) {
		return nil, ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return d.insert(ctx, credential{
		Identity: Identity{
			ID:        uuid.NewString(),
			Email:     email,
			Provider:  ProviderPassword,
			CreatedAt: d.now().UTC(),
		},
		PasswordHash: string(hash),
	})
}

// Lookup loads an identity by id.
func (d *Directory) Lookup(ctx context.Context, id string) (*Identity, error) {
	var cred credential
	if err := d.ds.Get(ctx, IdentitiesCollection, id, &cred); err != nil {
		if docstore.IsNotFound(err) {
			return nil, ErrUnknownIdentity
		}
		return nil, err
	}
	out := cred.Identity
	return &out, nil
}

// Federated exchanges an authorization code with the named provider and
// returns the matching identity, creating it on first use. An existing
// password identity with the same email is linked, not duplicated.
// Profiles whose email the provider has not verified are rejected, and so
// are emails the config marks password-only.
func (d *Directory) Federated(ctx context.Context, provider, code string) (*Identity, error) {
	ex, ok := d.cfg.Exchangers[provider]
	if !ok || ex == nil {
		return nil, ErrUnsupportedProvider
	}
	profile, err := ex.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s exchange: %w", provider, err)
	}
	email := NormalizeEmail(profile.Email)
	if !validEmail(email) {
		return nil, ErrInvalidEmail
	}
	if !profile.EmailVerified {
		d.log.Warn("federated profile with unverified email rejected",
			zap.String("provider", provider), zap.String("email", email))
		return nil, ErrEmailUnverified
	}
	if d.cfg.PasswordOnly != nil && d.cfg.PasswordOnly(email) {
		d.log.Warn("federated sign-in refused for password-only email",
			zap.String("provider", provider), zap.String("email", email))
		return nil, ErrPasswordRequired
	}

	cred, err := d.findByEmail(ctx, email)
	switch {
	case err == nil:
		set := bson.M{"subject": profile.Subject}
		if !cred.EmailVerified {
			set["email_verified"] = true
			cred.EmailVerified = true
		}
		if err := d.ds.Update(ctx, IdentitiesCollection, cred.ID, set); err != nil {
			return nil, err
		}
		id := cred.Identity
		return &id, nil
	case errors.Is(err, ErrUnknownIdentity):
		return d.insert(ctx, credential{
			Identity: Identity{
				ID:            uuid.NewString(),
				Email:         email,
				EmailVerified: true,
				Provider:      provider,
				DisplayName:   profile.Name,
				CreatedAt:     d.now().UTC(),
			},
			Subject: profile.Subject,
		})
	default:
		return nil, err
	}
}

// Exchanger returns the federated exchanger registered under provider.
func (d *Directory) Exchanger(provider string) (Exchanger, bool) {
	ex, ok := d.cfg.Exchangers[provider]
	return ex, ok && ex != nil
}

// SendVerification mails a confirmation link for id.
func (d *Directory) SendVerification(ctx context.Context, id *Identity) error {
	now := d.now().UTC()
	v := verification{
		ID:         uuid.NewString(),
		IdentityID: id.ID,
		Email:      id.Email,
		ExpiresAt:  now.Add(d.cfg.VerificationExpiry),
		CreatedAt:  now,
	}
	if err := d.ds.Set(ctx, VerificationsCollection, v.ID, v, docstore.Replace); err != nil {
		return fmt.Errorf("store verification: %w", err)
	}

	msg := mailer.BuildVerificationEmail(mailer.VerificationEmailData{
		SiteName:   d.cfg.SiteName,
		VerifyLink: strings.TrimRight(d.cfg.BaseURL, "/") + "/verify?token=" + v.ID,
		ExpiresIn:  humanDuration(d.cfg.VerificationExpiry),
	})
	msg.To = id.Email
	if err := d.cfg.Mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send verification: %w", err)
	}
	d.log.Info("verification email sent", zap.String("identity_id", id.ID))
	return nil
}

// ConfirmVerification consumes a token and marks its identity verified.
func (d *Directory) ConfirmVerification(ctx context.Context, token string) (*Identity, error) {
	var v verification
	if err := d.ds.Get(ctx, VerificationsCollection, token, &v); err != nil {
		if docstore.IsNotFound(err) {
			return nil, ErrVerificationInvalid
		}
		return nil, err
	}
	if d.now().After(v.ExpiresAt) {
		_ = d.ds.Delete(ctx, VerificationsCollection, token)
		return nil, ErrVerificationExpired
	}
	if err := d.ds.Update(ctx, IdentitiesCollection, v.IdentityID, bson.M{"email_verified": true}); err != nil {
		if docstore.IsNotFound(err) {
			return nil, ErrVerificationInvalid
		}
		return nil, err
	}
	if err := d.ds.Delete(ctx, VerificationsCollection, token); err != nil {
		d.log.Warn("verification token not removed", zap.Error(err))
	}
	return d.Lookup(ctx, v.IdentityID)
}

// PurgeExpiredVerifications deletes verification tokens past their
// expiry and returns how many it removed.
func (d *Directory) PurgeExpiredVerifications(ctx context.Context) (int64, error) {
	snap, err := d.ds.Query(ctx, docstore.Query{
		Collection: VerificationsCollection,
		Filters:    []docstore.Filter{{Field: "expires_at", Op: docstore.Lt, Value: d.now().UTC()}},
	})
	if err != nil {
		return 0, err
	}
	expired, err := docstore.DecodeAll[verification](snap)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, v := range expired {
		if err := d.ds.Delete(ctx, VerificationsCollection, v.ID); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (d *Directory) findByEmail(ctx context.Context, email string) (*credential, error) {
	snap, err := d.ds.Query(ctx, docstore.Query{
		Collection: IdentitiesCollection,
		Filters:    []docstore.Filter{docstore.Where("email", email)},
		Limit:      1,
	})
	if err != nil {
		return nil, err
	}
	creds, err := docstore.DecodeAll[credential](snap)
	if err != nil {
		return nil, err
	}
	if len(creds) == 0 {
		return nil, ErrUnknownIdentity
	}
	return &creds[0], nil
}

func (d *Directory) insert(ctx context.Context, cred credential) (*Identity, error) {
	if _, err := d.findByEmail(ctx, cred.Email); err == nil {
		return nil, ErrEmailInUse
	} else if !errors.Is(err, ErrUnknownIdentity) {
		return nil, err
	}
	if err := d.ds.Set(ctx, IdentitiesCollection, cred.ID, cred, docstore.Replace); err != nil {
		// The unique email index catches a concurrent registration.
		if errors.Is(err, docstore.ErrDuplicate) {
			return nil, ErrEmailInUse
		}
		return nil, fmt.Errorf("store identity: %w", err)
	}
	id := cred.Identity
	return &id, nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	case d >= time.Minute && d%time.Minute == 0:
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	return d.String()
}
