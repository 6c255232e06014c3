package social

import (
	"errors"
	"net/http"
	"strconv"

	"golang.org/x/oauth2/endpoints"
)

const (
	// GoogleUserInfoURL is Google's OpenID Connect user-info endpoint.
	GoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
	// GitHubUserInfoURL is GitHub's authenticated-user endpoint.
	GitHubUserInfoURL = "https://api.github.com/user"
)

// NewGoogleAdapter returns the "google" adapter.
func NewGoogleAdapter(clientID, clientSecret string, httpClient *http.Client) (*OAuth2Adapter, error) {
	return NewOAuth2Adapter(OAuth2Config{
		Name:          "google",
		ClientID:      clientID,
		ClientSecret:  clientSecret,
		Endpoint:      endpoints.Google,
		Scopes:        []string{"openid", "email", "profile"},
		UserInfoURL:   GoogleUserInfoURL,
		HTTPClient:    httpClient,
		NormalizeFunc: NormalizeGoogle,
	})
}

// NormalizeGoogle maps an OpenID Connect user-info document.
func NormalizeGoogle(p Profile) (Identity, error) {
	sub := p.String("sub")
	if sub == "" {
		return Identity{}, errors.New("google profile missing sub")
	}
	email := p.String("email")
	if email == "" {
		return Identity{}, errors.New("google profile missing email")
	}
	return Identity{
		SubjectID:     sub,
		Email:         email,
		EmailVerified: p.Bool("email_verified"),
		Name:          p.String("name"),
		AvatarURL:     p.String("picture"),
	}, nil
}

// NewGitHubAdapter returns the "github" adapter.
func NewGitHubAdapter(clientID, clientSecret string, httpClient *http.Client) (*OAuth2Adapter, error) {
	return NewOAuth2Adapter(OAuth2Config{
		Name:          "github",
		ClientID:      clientID,
		ClientSecret:  clientSecret,
		Endpoint:      endpoints.GitHub,
		Scopes:        []string{"read:user", "user:email"},
		UserInfoURL:   GitHubUserInfoURL,
		HTTPClient:    httpClient,
		NormalizeFunc: NormalizeGitHub,
	})
}

// NormalizeGitHub maps GitHub's /user document. GitHub ids are numeric and
// the email is absent when the user keeps it private.
func NormalizeGitHub(p Profile) (Identity, error) {
	var id string
	switch v := p["id"].(type) {
	case float64:
		id = strconv.FormatInt(int64(v), 10)
	case string:
		id = v
	}
	if id == "" || id == "0" {
		return Identity{}, errors.New("github profile missing id")
	}
	name := p.String("name")
	if name == "" {
		name = p.String("login")
	}
	return Identity{
		SubjectID: id,
		Email:     p.String("email"),
		Name:      name,
		AvatarURL: p.String("avatar_url"),
	}, nil
}
