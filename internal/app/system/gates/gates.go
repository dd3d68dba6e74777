// Package gates decides, per protected route, whether the current session
// may proceed.
//
// # Decision Order
//
// Evaluate checks a session against Options in a fixed order:
//
//  1. A loading session is Resolving. Nothing is granted or denied until
//     the session has settled.
//  2. Authentication (unless Options.Anonymous). Failure redirects to the
//     login page with a return parameter.
//  3. AllowedRoles. Failure redirects to the dashboard, except that a
//     pending user gets the read-only PendingApproval view unless
//     HardDenyPending is set.
//  4. RequireEmailVerification. Failure shows the verification view.
//
// Evaluate is a pure function of its inputs. Guard applies it as chi
// middleware.
package gates

import (
	"net/http"
	"net/url"

	uierrors "github.com/dalemusser/tutorhub/internal/app/features/errors"
	"github.com/dalemusser/tutorhub/internal/app/system/auth"
	"github.com/dalemusser/tutorhub/internal/app/system/navigation"
	"github.com/dalemusser/tutorhub/internal/domain/models"
)

// State is the outcome of a gate check.
type State int

const (
	Resolving State = iota
	DeniedNotAuthenticated
	DeniedWrongRole
	DeniedUnverified
	DeniedDeactivated
	PendingApproval
	Granted
)

func (s State) String() string {
	switch s {
	case Resolving:
		return "resolving"
	case DeniedNotAuthenticated:
		return "denied_not_authenticated"
	case DeniedWrongRole:
		return "denied_wrong_role"
	case DeniedUnverified:
		return "denied_unverified"
	case DeniedDeactivated:
		return "denied_deactivated"
	case PendingApproval:
		return "pending_approval"
	case Granted:
		return "granted"
	}
	return "unknown"
}

// Default redirect targets.
const (
	DefaultLoginURL     = "/login"
	DefaultDashboardURL = "/dashboard"
)

// Options configures one gate. The zero value requires a signed-in user
// of any role.
type Options struct {
	// Anonymous drops the authentication requirement.
	Anonymous bool
	// AllowedRoles lists the roles that may pass. Empty means any role.
	AllowedRoles []models.Role
	// RequireEmailVerification denies identities whose email is unconfirmed.
	RequireEmailVerification bool
	// HardDenyPending treats a pending user like any other wrong role.
	HardDenyPending bool

	LoginURL     string
	DashboardURL string
}

// Roles returns Options allowing only the given roles.
func Roles(roles ...models.Role) Options {
	return Options{AllowedRoles: roles}
}

func (o Options) loginURL() string {
	if o.LoginURL == "" {
		return DefaultLoginURL
	}
	return o.LoginURL
}

func (o Options) dashboardURL() string {
	if o.DashboardURL == "" {
		return DefaultDashboardURL
	}
	return o.DashboardURL
}

func (o Options) allows(role models.Role) bool {
	if len(o.AllowedRoles) == 0 {
		return true
	}
	for _, r := range o.AllowedRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Decision is the result of Evaluate. Redirect is set for the two
// redirecting denials.
type Decision struct {
	State    State
	Redirect string
}

// Evaluate decides what s may do under opts.
func Evaluate(opts Options, s auth.Session) Decision {
	if s.Loading {
		return Decision{State: Resolving}
	}

	authed := s.Authenticated()
	if !opts.Anonymous && !authed {
		return Decision{State: DeniedNotAuthenticated, Redirect: opts.loginURL()}
	}

	if !opts.Anonymous && s.Deactivated() {
		return Decision{State: DeniedDeactivated}
	}

	if len(opts.AllowedRoles) > 0 {
		if !authed {
			return Decision{State: DeniedNotAuthenticated, Redirect: opts.loginURL()}
		}
		if !opts.allows(s.Role()) {
			if s.IsPending && !opts.HardDenyPending {
				return Decision{State: PendingApproval}
			}
			return Decision{State: DeniedWrongRole, Redirect: opts.dashboardURL()}
		}
	}

	if opts.RequireEmailVerification && authed && !s.EmailVerified() {
		return Decision{State: DeniedUnverified}
	}
	return Decision{State: Granted}
}

// Guard is middleware applying Evaluate to the request's session.
//
//   - DeniedNotAuthenticated: 303 to the login page with ?return=
//   - DeniedWrongRole: 303 to the dashboard
//   - DeniedUnverified: 403 verification view
//   - DeniedDeactivated: 403 deactivated view
//   - PendingApproval: 200 read-only pending view
//   - Resolving: 503 with Retry-After
func Guard(opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := Evaluate(opts, auth.CurrentSession(r))
			switch d.State {
			case Granted:
				next.ServeHTTP(w, r)
			case DeniedNotAuthenticated:
				dest := d.Redirect + "?return=" + url.QueryEscape(r.URL.RequestURI())
				navigation.Redirect(w, r, dest)
			case DeniedWrongRole:
				navigation.Redirect(w, r, d.Redirect)
			case DeniedUnverified:
				uierrors.RenderUnverified(w, r)
			case DeniedDeactivated:
				uierrors.RenderDeactivated(w, r)
			case PendingApproval:
				uierrors.RenderPending(w, r)
			default:
				uierrors.RenderResolving(w, r, 1)
			}
		})
	}
}

// RequireRole is Guard for a role list.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return Guard(Roles(roles...))
}

// RequireSignedIn is Guard with the zero Options.
func RequireSignedIn(next http.Handler) http.Handler {
	return Guard(Options{})(next)
}
