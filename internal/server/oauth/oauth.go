// Package oauth delegates user identity to an external OAuth2/OpenID provider.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// GoogleUserInfoURL is the OpenID Connect userinfo endpoint.
const GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// Identity is the profile the provider vouches for. Subject is stable per user.
type Identity struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// Provider runs the authorization-code flow.
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (Identity, error)
}

type Google struct {
	cfg         *oauth2.Config
	userInfoURL string
}

func NewGoogle(clientID, clientSecret, redirectURL string) *Google {
	return NewGoogleWithEndpoint(clientID, clientSecret, redirectURL, endpoints.Google, GoogleUserInfoURL)
}

// NewGoogleWithEndpoint points the flow at custom token and userinfo URLs.
func NewGoogleWithEndpoint(clientID, clientSecret, redirectURL string, ep oauth2.Endpoint, userInfoURL string) *Google {
	return &Google{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     ep,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: userInfoURL,
	}
}

func (g *Google) AuthCodeURL(state string) string {
	return g.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

type userInfo struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (g *Google) Exchange(ctx context.Context, code string) (Identity, error) {
	if code == "" {
		return Identity{}, errors.New("missing authorization code")
	}
	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return Identity{}, fmt.Errorf("exchange code: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return Identity{}, err
	}
	resp, err := g.cfg.Client(ctx, tok).Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Identity{}, fmt.Errorf("userinfo http %d: %s", resp.StatusCode, string(b))
	}
	var ui userInfo
	if err := json.NewDecoder(resp.Body).Decode(&ui); err != nil {
		return Identity{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if ui.Sub == "" {
		return Identity{}, errors.New("userinfo has no subject")
	}
	id := Identity{Subject: ui.Sub, Email: ui.Email, Name: ui.Name, Picture: ui.Picture}
	if id.Name == "" {
		id.Name = id.Email
	}
	return id, nil
}
