package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/tutorhub/internal/app/store/audit"
	userstore "github.com/dalemusser/tutorhub/internal/app/store/users"
	"github.com/dalemusser/tutorhub/internal/app/system/auditlog"
	"github.com/dalemusser/tutorhub/internal/app/system/auth"
	"github.com/dalemusser/tutorhub/internal/app/system/docstore"
	"github.com/dalemusser/tutorhub/internal/app/system/docstore/memstore"
	"github.com/dalemusser/tutorhub/internal/app/system/fanout"
	"github.com/dalemusser/tutorhub/internal/app/system/identity"
	"github.com/dalemusser/tutorhub/internal/app/system/mailer"
	"github.com/dalemusser/tutorhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// Credentials used by App.
const (
	AdminEmail      = "root@tutorhub.test"
	AdminSecret     = "bootstrap-secret"
	DefaultPassword = "password1"
	SessionKey      = "test-session-key-for-testing-only-0123456789"
)

// App wires the core services on one in-memory store, the way the
// bootstrap wires them on MongoDB.
type App struct {
	DS       *memstore.Store
	Mailer   *mailer.LogMailer
	Dir      *identity.Directory
	Users    *userstore.Store
	Resolver *auth.Resolver
	Authn    *auth.Authenticator
	Sessions *auth.SessionManager
	Audit    *auditlog.Logger
	Fanout   *fanout.Service
	Log      *zap.Logger

	t *testing.T
}

// NewApp builds an App. exchangers may register federated providers.
func NewApp(t *testing.T, exchangers map[string]identity.Exchanger) *App {
	t.Helper()

	log := zap.NewNop()
	ds := memstore.New()
	ml := mailer.NewLogMailer(log)
	admins := auth.NewAdminAllowlist(AdminEmail)
	dir := identity.NewDirectory(ds, identity.DirectoryConfig{
		SiteName:     "TutorHub",
		BaseURL:      "http://tutorhub.test",
		Mailer:       ml,
		Exchangers:   exchangers,
		PasswordOnly: admins.Contains,
	}, log)
	users := userstore.New(ds)
	resolver := auth.NewResolver(users, admins, log)

	sm, err := auth.NewSessionManager(SessionKey, "test-session", "", 0, false, dir, resolver, log)
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}

	return &App{
		DS:       ds,
		Mailer:   ml,
		Dir:      dir,
		Users:    users,
		Resolver: resolver,
		Authn:    auth.NewAuthenticator(users, admins, AdminSecret, log),
		Sessions: sm,
		Audit:    auditlog.New(audit.New(ds), log, auditlog.Config{Auth: "all", Admin: "all"}),
		Fanout:   fanout.New(ds, fanout.Options{}, log),
		Log:      log,
		t:        t,
	}
}

// Account is a signed-up user with a session cookie.
type Account struct {
	User   models.User
	Cookie *http.Cookie
}

// NewAccount creates an identity and its user record with role, and
// returns a cookie that signs requests in as that user.
func (a *App) NewAccount(displayName, email string, role models.Role, verified bool) Account {
	a.t.Helper()
	ctx := context.Background()

	id, err := a.Dir.Create(ctx, email, DefaultPassword)
	if err != nil {
		a.t.Fatalf("create identity %s: %v", email, err)
	}
	if verified {
		if err := a.DS.Update(ctx, identity.IdentitiesCollection, id.ID, bson.M{"email_verified": true}); err != nil {
			a.t.Fatalf("verify identity: %v", err)
		}
	}

	rec := userstore.NewRecord(id.ID, id.Email, role, false)
	rec.DisplayName = displayName
	rec.DisplayNameCI = text.Fold(displayName)
	if _, err := a.Users.Put(ctx, rec, docstore.Replace); err != nil {
		a.t.Fatalf("create user record: %v", err)
	}
	return Account{User: rec, Cookie: a.Cookie(id.ID)}
}

// Cookie returns a session cookie for identityID.
func (a *App) Cookie(identityID string) *http.Cookie {
	a.t.Helper()
	rec := httptest.NewRecorder()
	if err := a.Sessions.Persist(rec, httptest.NewRequest(http.MethodGet, "/", nil), identityID); err != nil {
		a.t.Fatalf("persist session: %v", err)
	}
	return SessionCookie(a.t, rec)
}

// Serve runs h behind the session loader and returns the recording.
func (a *App) Serve(h http.Handler, r *http.Request, c *http.Cookie) *ResponseRecorder {
	if c != nil {
		r.AddCookie(c)
	}
	rec := NewRecorder()
	a.Sessions.Load(h).ServeHTTP(rec, r)
	return rec
}

// SessionCookie returns the session cookie set on rec, failing the test
// when there is none.
func SessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "test-session" {
			return c
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}
