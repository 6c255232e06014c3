package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

const maxProfileBytes = 1 << 20

// OAuth2Config describes an authorization-code provider.
type OAuth2Config struct {
	Name         string
	ClientID     string
	ClientSecret string
	Endpoint     oauth2.Endpoint
	Scopes       []string
	UserInfoURL  string
	// HTTPClient is used for both the token exchange and the profile fetch.
	HTTPClient *http.Client
	// NormalizeFunc maps the provider's profile to an Identity.
	NormalizeFunc func(Profile) (Identity, error)
}

// OAuth2Adapter is an Adapter for providers speaking standard OAuth 2.0 with
// a JSON user-info endpoint.
type OAuth2Adapter struct {
	cfg OAuth2Config
}

// NewOAuth2Adapter validates cfg and returns an adapter.
func NewOAuth2Adapter(cfg OAuth2Config) (*OAuth2Adapter, error) {
	switch {
	case cfg.Name == "":
		return nil, errors.New("social: provider name is required")
	case cfg.ClientID == "" || cfg.ClientSecret == "":
		return nil, fmt.Errorf("social: %s client credentials are required", cfg.Name)
	case cfg.Endpoint.TokenURL == "":
		return nil, fmt.Errorf("social: %s token url is required", cfg.Name)
	case cfg.UserInfoURL == "":
		return nil, fmt.Errorf("social: %s user info url is required", cfg.Name)
	case cfg.NormalizeFunc == nil:
		return nil, fmt.Errorf("social: %s normalizer is required", cfg.Name)
	}
	return &OAuth2Adapter{cfg: cfg}, nil
}

// Name returns the provider name.
func (a *OAuth2Adapter) Name() string {
	return a.cfg.Name
}

func (a *OAuth2Adapter) withClient(ctx context.Context) context.Context {
	if a.cfg.HTTPClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, a.cfg.HTTPClient)
}

// ExchangeCode trades an authorization code for the provider access token.
func (a *OAuth2Adapter) ExchangeCode(ctx context.Context, code, redirectURI string) (string, error) {
	if code == "" {
		return "", errors.New("authorization code is required")
	}
	conf := &oauth2.Config{
		ClientID:     a.cfg.ClientID,
		ClientSecret: a.cfg.ClientSecret,
		Endpoint:     a.cfg.Endpoint,
		RedirectURL:  redirectURI,
		Scopes:       a.cfg.Scopes,
	}
	tok, err := conf.Exchange(a.withClient(ctx), code)
	if err != nil {
		return "", fmt.Errorf("%s token exchange: %w", a.cfg.Name, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%s token exchange: empty access token", a.cfg.Name)
	}
	return tok.AccessToken, nil
}

// UserInfo fetches the provider profile authorized by accessToken.
func (a *OAuth2Adapter) UserInfo(ctx context.Context, accessToken string) (Profile, error) {
	ctx = a.withClient(ctx)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s profile request: %w", a.cfg.Name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s profile request failed: status %d", a.cfg.Name, resp.StatusCode)
	}

	var profile Profile
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProfileBytes)).Decode(&profile); err != nil {
		return nil, fmt.Errorf("%s profile decode: %w", a.cfg.Name, err)
	}
	return profile, nil
}

// Normalize maps profile to an Identity using the configured normalizer.
func (a *OAuth2Adapter) Normalize(profile Profile) (Identity, error) {
	id, err := a.cfg.NormalizeFunc(profile)
	if err != nil {
		return Identity{}, err
	}
	id.Provider = a.cfg.Name
	if id.SubjectID == "" {
		return Identity{}, fmt.Errorf("%s profile missing subject id", a.cfg.Name)
	}
	return id, nil
}
