package authcore

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	internalflows "github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/jwt"
)

// Login verifies email and password and starts a new session. Any refresh
// token issued to the user before stops working.
func (e *Engine) Login(ctx context.Context, email, password string) (pair TokenPair, err error) {
	if !e.ready() {
		return TokenPair{}, ErrEngineNotReady
	}
	ctx, finish := e.startOp(ctx, OpLogin)
	defer func() { finish(err) }()

	if email == "" || password == "" {
		e.emitAudit(ctx, auditEventLoginFailure, false, ErrAuthFailed, auditFields{
			Email:    email,
			Metadata: map[string]string{"reason": "empty_credentials"},
		})
		return TokenPair{}, ErrAuthFailed
	}

	res := e.flow.Login(ctx, email, password)
	switch res.Failure {
	case internalflows.LoginFailureNone:
	case internalflows.LoginFailureRateLimited:
		err = ErrLoginRateLimited
	case internalflows.LoginFailureInvalidCredentials, internalflows.LoginFailureInactive:
		err = ErrAuthFailed
	case internalflows.LoginFailureStore:
		err = storeUnavailable(res.Err)
	default:
		err = res.Err
	}
	if err != nil {
		e.emitAudit(ctx, auditEventLoginFailure, false, err, auditFields{
			UserID: res.UserID,
			Email:  email,
		})
		return TokenPair{}, err
	}

	e.emitAudit(ctx, auditEventLoginSuccess, true, nil, auditFields{UserID: res.UserID, Email: email})
	return TokenPair{
		UserID:       res.UserID,
		UserType:     res.UserType,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
	}, nil
}

// Refresh mints a new access token for the presented refresh token, which
// must be the one currently stored for userID. An empty userID selects the
// token's own subject. With rotation enabled the pair carries a new refresh
// token and the presented one stops working.
func (e *Engine) Refresh(ctx context.Context, userID, refreshToken string) (pair TokenPair, err error) {
	if !e.ready() {
		return TokenPair{}, ErrEngineNotReady
	}
	ctx, finish := e.startOp(ctx, OpRefresh, attribute.Bool("authcore.rotate", e.config.Session.RotateRefreshOnUse))
	defer func() { finish(err) }()

	res := e.flow.Refresh(ctx, userID, refreshToken)
	switch res.Failure {
	case internalflows.RefreshFailureNone:
	case internalflows.RefreshFailureDecode:
		err = mapTokenError(res.Err)
	case internalflows.RefreshFailureSuperseded:
		err = ErrSuperseded
	case internalflows.RefreshFailureUserNotFound:
		err = ErrUserNotFound
	case internalflows.RefreshFailureStore:
		err = storeUnavailable(res.Err)
	default:
		err = res.Err
	}
	if err != nil {
		event := auditEventRefreshFailure
		if errors.Is(err, ErrSuperseded) {
			event = auditEventRefreshSuperseded
		}
		e.emitAudit(ctx, event, false, err, auditFields{UserID: res.UserID})
		return TokenPair{}, err
	}

	e.emitAudit(ctx, auditEventRefreshSuccess, true, nil, auditFields{UserID: res.UserID})
	return TokenPair{
		UserID:       res.UserID,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
	}, nil
}

// Logout clears the stored refresh token of userID. It is idempotent.
func (e *Engine) Logout(ctx context.Context, userID string) (err error) {
	if !e.ready() {
		return ErrEngineNotReady
	}
	ctx, finish := e.startOp(ctx, OpLogout)
	defer func() { finish(err) }()

	if userID == "" {
		return ErrInvalidInput
	}
	if err := e.flow.Logout(ctx, userID); err != nil {
		return storeUnavailable(err)
	}

	e.emitAudit(ctx, auditEventLogout, true, nil, auditFields{UserID: userID})
	return nil
}

// Authenticate resolves the user behind an access token.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (res AuthResult, err error) {
	if !e.ready() {
		return AuthResult{}, ErrEngineNotReady
	}
	ctx, finish := e.startOp(ctx, OpAuthenticate)
	defer func() { finish(err) }()

	claims, err := e.codec.Decode(accessToken, jwt.KindAccess)
	if err != nil {
		return AuthResult{}, mapTokenError(err)
	}

	user, err := e.identities.FindByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return AuthResult{}, ErrUserNotFound
		}
		return AuthResult{}, storeUnavailable(err)
	}

	return AuthResult{
		UserID:    user.ID,
		Email:     user.Email,
		UserType:  user.UserType,
		Active:    user.Active,
		ExpiresAt: claims.ExpiresAtTime(),
	}, nil
}
