package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/authcore/social"
)

// SocialLoginFailureKind classifies social login failures.
type SocialLoginFailureKind int

const (
	SocialLoginFailureNone SocialLoginFailureKind = iota
	SocialLoginFailureUnknownProvider
	SocialLoginFailureExchange
	SocialLoginFailureUserInfo
	SocialLoginFailureNormalize
	SocialLoginFailureStore
	SocialLoginFailureIssue
)

// SocialLoginDeps captures social login flow dependencies.
type SocialLoginDeps struct {
	Session  SessionDeps
	Adapters *social.Registry
	// FindOrCreate resolves the local user for an external identity.
	FindOrCreate func(ctx context.Context, id social.Identity) (SocialAccount, error)
}

// SocialAccount is the local user an external identity resolved to.
type SocialAccount struct {
	UserID   string
	UserType string
	Created  bool
}

// SocialLoginResult carries the issued tokens and the resolved identity.
type SocialLoginResult struct {
	Failure      SocialLoginFailureKind
	Err          error
	Provider     string
	Identity     social.Identity
	UserID       string
	UserType     string
	Created      bool
	AccessToken  string
	RefreshToken string
}

// RunSocialLogin performs the provider exchange, resolves the local user by
// (provider, subject id) and issues a session without a password check.
// Provider emails are lowercased and trimmed like signup emails.
// Adapter failures are not retried.
func RunSocialLogin(ctx context.Context, provider, code, redirectURI string, deps SocialLoginDeps) SocialLoginResult {
	res := SocialLoginResult{Provider: provider}

	adapter, err := deps.Adapters.Adapter(provider)
	if err != nil {
		res.Err = err
		res.Failure = SocialLoginFailureExchange
		if errors.Is(err, social.ErrUnknownProvider) {
			res.Failure = SocialLoginFailureUnknownProvider
		}
		return res
	}
	res.Provider = adapter.Name()

	externalToken, err := adapter.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		res.Failure, res.Err = SocialLoginFailureExchange, err
		return res
	}
	profile, err := adapter.UserInfo(ctx, externalToken)
	if err != nil {
		res.Failure, res.Err = SocialLoginFailureUserInfo, err
		return res
	}
	identity, err := adapter.Normalize(profile)
	if err != nil {
		res.Failure, res.Err = SocialLoginFailureNormalize, err
		return res
	}
	identity.Email = normalizeEmail(identity.Email)
	res.Identity = identity

	acct, err := deps.FindOrCreate(ctx, identity)
	if err != nil {
		res.Failure, res.Err = SocialLoginFailureStore, err
		return res
	}
	res.UserID, res.UserType, res.Created = acct.UserID, acct.UserType, acct.Created

	issued := RunIssueSession(ctx, acct.UserID, deps.Session)
	if issued.Failure != SessionFailureNone {
		res.Err = issued.Err
		res.Failure = SocialLoginFailureIssue
		if issued.Failure == SessionFailureStore {
			res.Failure = SocialLoginFailureStore
		}
		return res
	}

	res.AccessToken = issued.AccessToken
	res.RefreshToken = issued.RefreshToken
	return res
}
