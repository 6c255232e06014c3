package authcore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MrEthical07/authcore/internal/credential"
	internalflows "github.com/MrEthical07/authcore/internal/flows"
)

// IssueEmailVerificationToken mints a single-use verification token for
// userID. Nothing is stored until the token is consumed.
func (e *Engine) IssueEmailVerificationToken(userID, email string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	if userID == "" || strings.TrimSpace(email) == "" {
		return "", ErrInvalidInput
	}
	return e.flow.IssueEmailVerification(userID, email)
}

// RequestEmailVerification throttles sends per email address, then issues a
// token and hands the send job to the dispatcher. email must be the address
// stored for userID; the mail always goes to the stored address. A rejected
// request returns a *ThrottleError naming the limit.
func (e *Engine) RequestEmailVerification(ctx context.Context, userID, email string) (err error) {
	if !e.ready() {
		return ErrEngineNotReady
	}
	ctx, finish := e.startOp(ctx, OpRequestEmailVerification)
	defer func() { finish(err) }()

	if userID == "" || strings.TrimSpace(email) == "" {
		return ErrInvalidInput
	}

	user, err := e.identities.FindByID(ctx, userID)
	switch {
	case errors.Is(err, ErrUserNotFound):
		err = ErrUserNotFound
	case err != nil:
		err = storeUnavailable(err)
	case credential.NormalizeEmail(user.Email) != credential.NormalizeEmail(email):
		err = fmt.Errorf("%w: email does not belong to user", ErrInvalidInput)
	}
	if err != nil {
		e.emitAudit(ctx, auditEventEmailVerificationRequest, false, err, auditFields{UserID: userID, Email: email})
		return err
	}
	email = user.Email

	res := e.flow.RequestEmailVerification(ctx, userID, email)
	switch res.Failure {
	case internalflows.RequestVerificationFailureNone:
	case internalflows.RequestVerificationFailureCooldown:
		err = &ThrottleError{Reason: ErrCooldownActive}
	case internalflows.RequestVerificationFailureDailyLimit:
		err = &ThrottleError{Reason: ErrDailyLimitExceeded}
	case internalflows.RequestVerificationFailureStore, internalflows.RequestVerificationFailureDispatch:
		err = storeUnavailable(res.Err)
	default:
		err = res.Err
	}
	if err != nil {
		event := auditEventEmailVerificationRequest
		if errors.Is(err, ErrThrottled) {
			event = auditEventEmailVerificationThrottle
			e.logger.InfoContext(ctx, "verification email throttled", "email", email, "reason", ThrottleReason(err))
		}
		e.emitAudit(ctx, event, false, err, auditFields{UserID: userID, Email: email})
		return err
	}

	e.emitAudit(ctx, auditEventEmailVerificationRequest, true, nil, auditFields{
		UserID:   userID,
		Email:    email,
		Metadata: map[string]string{"daily_count": strconv.FormatInt(res.DailyCount, 10)},
	})
	return nil
}

// ConsumeEmailVerification accepts a verification token once. The token is
// burned before the user is activated, so an activation failure leaves the
// user inactive and the token spent.
func (e *Engine) ConsumeEmailVerification(ctx context.Context, token string) (res VerificationResult, err error) {
	if !e.ready() {
		return VerificationResult{}, ErrEngineNotReady
	}
	ctx, finish := e.startOp(ctx, OpConsumeEmailVerification)
	defer func() { finish(err) }()

	out := e.flow.ConsumeEmailVerification(ctx, token)
	switch out.Failure {
	case internalflows.ConsumeVerificationFailureNone:
	case internalflows.ConsumeVerificationFailureDecode:
		err = mapTokenError(out.Err)
	case internalflows.ConsumeVerificationFailureAlreadyUsed:
		err = ErrAlreadyUsed
	case internalflows.ConsumeVerificationFailureUserNotFound:
		err = ErrUserNotFound
	case internalflows.ConsumeVerificationFailureEmailMismatch:
		err = fmt.Errorf("%w: token email no longer matches the user", ErrInvalidInput)
	case internalflows.ConsumeVerificationFailureStore, internalflows.ConsumeVerificationFailureActivate:
		err = storeUnavailable(out.Err)
	default:
		err = fmt.Errorf("authcore: consume verification: %w", out.Err)
	}
	if err != nil {
		e.emitAudit(ctx, auditEventEmailVerificationConfirm, false, err, auditFields{UserID: out.UserID, Email: out.Email})
		return VerificationResult{}, err
	}

	e.emitAudit(ctx, auditEventEmailVerificationConfirm, true, nil, auditFields{UserID: out.UserID, Email: out.Email})
	return VerificationResult{UserID: out.UserID, Email: out.Email}, nil
}
