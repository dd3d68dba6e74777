package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// FederatedProfile is what a federated provider tells us about a user.
type FederatedProfile struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// Exchanger turns an authorization code into a profile.
type Exchanger interface {
	// AuthCodeURL is where the browser is sent to start the flow.
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (FederatedProfile, error)
}

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleExchanger implements Exchanger with Google OAuth2.
type GoogleExchanger struct {
	cfg         *oauth2.Config
	userInfoURL string
}

// NewGoogleExchanger returns an exchanger for the given OAuth client. It
// returns nil when the client id or secret is empty.
func NewGoogleExchanger(clientID, clientSecret, redirectURL string) *GoogleExchanger {
	if clientID == "" || clientSecret == "" {
		return nil
	}
	return &GoogleExchanger{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes: []string{
				"openid",
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		userInfoURL: googleUserInfoURL,
	}
}

// AuthCodeURL implements Exchanger.
func (g *GoogleExchanger) AuthCodeURL(state string) string {
	return g.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"verified_email"`
	Name          string `json:"name"`
}

// Exchange implements Exchanger.
func (g *GoogleExchanger) Exchange(ctx context.Context, code string) (FederatedProfile, error) {
	token, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return FederatedProfile{}, fmt.Errorf("exchange code: %w", err)
	}

	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	resp, err := client.Get(g.userInfoURL)
	if err != nil {
		return FederatedProfile{}, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return FederatedProfile{}, fmt.Errorf("user info: unexpected status code %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return FederatedProfile{}, fmt.Errorf("decode user info: %w", err)
	}
	return FederatedProfile{
		Subject:       info.ID,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		Name:          info.Name,
	}, nil
}
