package authcore

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	internalflows "github.com/MrEthical07/authcore/internal/flows"
)

// SocialLogin exchanges an authorization code with the named provider,
// finds or creates the local user for the external identity and starts a
// session for it. Provider failures are not retried. An external email
// already held by another local account yields ErrEmailTaken; accounts are
// never merged.
func (e *Engine) SocialLogin(ctx context.Context, provider, code, redirectURI string) (res SocialLoginResult, err error) {
	if !e.ready() {
		return SocialLoginResult{}, ErrEngineNotReady
	}
	ctx, finish := e.startOp(ctx, OpSocialLogin, attribute.String("authcore.provider", provider))
	defer func() { finish(err) }()

	if code == "" {
		return SocialLoginResult{}, fmt.Errorf("%w: authorization code is required", ErrInvalidInput)
	}

	out := e.flow.SocialLogin(ctx, provider, code, redirectURI)
	switch out.Failure {
	case internalflows.SocialLoginFailureNone:
	case internalflows.SocialLoginFailureUnknownProvider:
		err = fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	case internalflows.SocialLoginFailureExchange,
		internalflows.SocialLoginFailureUserInfo,
		internalflows.SocialLoginFailureNormalize:
		err = fmt.Errorf("%w: %v", ErrSocialLoginFailed, out.Err)
	case internalflows.SocialLoginFailureStore:
		err = storeUnavailable(out.Err)
		if errors.Is(out.Err, ErrEmailTaken) {
			err = fmt.Errorf("%w: email belongs to another account", ErrEmailTaken)
		}
	default:
		err = out.Err
	}
	if err != nil {
		e.logger.WarnContext(ctx, "social login failed", "provider", out.Provider, "error", err)
		e.emitAudit(ctx, auditEventSocialLoginFailure, false, err, auditFields{
			UserID:   out.UserID,
			Email:    out.Identity.Email,
			Provider: out.Provider,
		})
		return SocialLoginResult{}, err
	}

	e.emitAudit(ctx, auditEventSocialLoginSuccess, true, nil, auditFields{
		UserID:   out.UserID,
		Email:    out.Identity.Email,
		Provider: out.Provider,
		Metadata: map[string]string{"created": fmt.Sprint(out.Created)},
	})
	return SocialLoginResult{
		TokenPair: TokenPair{
			UserID:       out.UserID,
			UserType:     out.UserType,
			AccessToken:  out.AccessToken,
			RefreshToken: out.RefreshToken,
		},
		Provider: out.Provider,
		Email:    out.Identity.Email,
		Created:  out.Created,
	}, nil
}
