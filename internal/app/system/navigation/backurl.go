// Package navigation provides safe return URLs and HTMX-aware redirects.
package navigation

import (
	"net/http"
	"strings"

	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
)

// BackURLOptions configures SafeBackURL.
type BackURLOptions struct {
	// AllowedPrefix is the required prefix of the return URL. Empty
	// allows any local URL.
	AllowedPrefix string
	// ExcludedSubpaths reject return URLs pointing back at action endpoints.
	ExcludedSubpaths []string
	// Fallback is used when the request carries no acceptable return URL.
	Fallback string
}

// SafeBackURL reads "return" from the query string, then the form, and
// returns it when it is a local URL satisfying opts. Otherwise it returns
// opts.Fallback.
func SafeBackURL(r *http.Request, opts BackURLOptions) string {
	ret := urlutil.SafeReturn(query.Get(r, "return"), "", "")
	if ret == "" {
		ret = urlutil.SafeReturn(strings.TrimSpace(r.FormValue("return")), "", "")
	}
	if ret == "" {
		return opts.Fallback
	}
	if opts.AllowedPrefix != "" && !strings.HasPrefix(ret, opts.AllowedPrefix) {
		return opts.Fallback
	}
	for _, excluded := range opts.ExcludedSubpaths {
		if strings.Contains(ret, excluded) {
			return opts.Fallback
		}
	}
	return ret
}

// Redirect sends a 303 to dest. HTMX requests also get HX-Redirect so the
// client performs a full-page navigation instead of a partial swap.
func Redirect(w http.ResponseWriter, r *http.Request, dest string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", dest)
	}
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

var (
	// AfterLogin accepts any local page except the auth endpoints.
	AfterLogin = BackURLOptions{
		ExcludedSubpaths: []string{"/login", "/logout", "/register"},
		Fallback:         "/dashboard",
	}

	SubscriptionsBackURL = BackURLOptions{
		AllowedPrefix: "/subscriptions",
		Fallback:      "/subscriptions",
	}

	NotificationsBackURL = BackURLOptions{
		AllowedPrefix: "/notifications",
		Fallback:      "/notifications",
	}

	AdminUsersBackURL = BackURLOptions{
		AllowedPrefix:    "/admin/users",
		ExcludedSubpaths: []string{"/approve", "/edit"},
		Fallback:         "/admin/users",
	}
)
