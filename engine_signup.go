package authcore

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"slices"
	"strings"

	"github.com/MrEthical07/authcore/internal/credential"
)

// Signup creates an inactive password user and, when configured, requests a
// verification email. A throttled or failed follow-up send does not undo the
// signup; it is reported in SignupResult.VerificationErr.
func (e *Engine) Signup(ctx context.Context, in SignupInput) (res SignupResult, err error) {
	if !e.ready() {
		return SignupResult{}, ErrEngineNotReady
	}
	ctx, finish := e.startOp(ctx, OpSignup)
	defer func() { finish(err) }()

	email := credential.NormalizeEmail(in.Email)
	userType, err := e.validateSignup(email, in)
	if err != nil {
		e.emitAudit(ctx, auditEventSignupFailure, false, err, auditFields{Email: email})
		return SignupResult{}, err
	}

	hash, err := e.hasher.Hash(in.Password)
	if err != nil {
		return SignupResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	user, err := e.identities.CreateUser(ctx, NewUser{
		Email:        email,
		Username:     strings.TrimSpace(in.Username),
		PasswordHash: hash,
		UserType:     userType,
		Active:       false,
	})
	if err != nil {
		if !errors.Is(err, ErrEmailTaken) {
			err = storeUnavailable(err)
		}
		e.emitAudit(ctx, auditEventSignupFailure, false, err, auditFields{Email: email})
		return SignupResult{}, err
	}

	res = SignupResult{UserID: user.ID, Email: user.Email, UserType: user.UserType}
	e.emitAudit(ctx, auditEventSignupSuccess, true, nil, auditFields{UserID: user.ID, Email: user.Email})

	if e.config.Signup.SendVerification {
		res.VerificationErr = e.RequestEmailVerification(ctx, user.ID, user.Email)
	}
	return res, nil
}

func (e *Engine) validateSignup(email string, in SignupInput) (string, error) {
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: email is not a valid address", ErrInvalidInput)
	}
	if len(in.Password) < e.config.Signup.MinPasswordLength {
		return "", fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, e.config.Signup.MinPasswordLength)
	}

	userType := strings.ToUpper(strings.TrimSpace(in.UserType))
	if userType == "" {
		userType = e.config.Signup.DefaultUserType
	}
	if !slices.Contains(e.config.Signup.AllowedUserTypes, userType) {
		return "", fmt.Errorf("%w: unsupported user type %q", ErrInvalidInput, in.UserType)
	}
	return userType, nil
}
