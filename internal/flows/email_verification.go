package flows

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/jwt"
)

// SendThrottle enforces per-identity send cooldowns and daily quotas.
type SendThrottle interface {
	CheckAndMarkSendAllowed(ctx context.Context, identity string, cooldown time.Duration, dailyLimit int) (int64, error)
}

// Revocations tracks spent single-use token ids.
type Revocations interface {
	IsBlacklisted(ctx context.Context, tokenID string) (bool, error)
	BlacklistOnce(ctx context.Context, tokenID string, ttl time.Duration) (bool, error)
}

// EmailVerificationDeps captures email verification flow dependencies.
type EmailVerificationDeps struct {
	Codec       TokenCodec
	TokenTTL    time.Duration
	Cooldown    time.Duration
	DailyLimit  int
	Throttle    SendThrottle
	Revocations Revocations
	// Enqueue hands the send job to the async dispatcher.
	Enqueue func(ctx context.Context, email, token string) error
	// Activate marks the user active after a successful consume. Optional.
	Activate func(ctx context.Context, userID string) error
	// StoredEmail returns the user's current email. When set, a token whose
	// email no longer matches is rejected before activation.
	StoredEmail func(ctx context.Context, userID string) (string, error)

	CooldownActive     error
	DailyLimitExceeded error
	NotFound           error
}

// RequestVerificationFailureKind classifies send request failures.
type RequestVerificationFailureKind int

const (
	RequestVerificationFailureNone RequestVerificationFailureKind = iota
	RequestVerificationFailureCooldown
	RequestVerificationFailureDailyLimit
	RequestVerificationFailureStore
	RequestVerificationFailureIssue
	RequestVerificationFailureDispatch
)

// RequestVerificationResult reports the outcome of a send request.
type RequestVerificationResult struct {
	Failure    RequestVerificationFailureKind
	Err        error
	DailyCount int64
}

// ConsumeVerificationFailureKind classifies consume failures.
type ConsumeVerificationFailureKind int

const (
	ConsumeVerificationFailureNone ConsumeVerificationFailureKind = iota
	ConsumeVerificationFailureDecode
	ConsumeVerificationFailureAlreadyUsed
	ConsumeVerificationFailureStore
	ConsumeVerificationFailureUserNotFound
	ConsumeVerificationFailureActivate
	ConsumeVerificationFailureEmailMismatch
)

// ConsumeVerificationResult reports the outcome of a consume.
type ConsumeVerificationResult struct {
	Failure ConsumeVerificationFailureKind
	Err     error
	UserID  string
	Email   string
	TokenID string
	// Revoked is how long the token id stays blacklisted.
	Revoked time.Duration
}

// RunIssueEmailVerification mints a single-use verification token. Nothing
// is stored; validity depends only on the signed expiry until consumption.
func RunIssueEmailVerification(userID, email string, deps EmailVerificationDeps) (string, error) {
	claims := deps.Codec.NewClaims(jwt.KindEmailVerification, userID, deps.TokenTTL)
	claims.Email = email
	return deps.Codec.Encode(claims)
}

// RunRequestEmailVerification checks the send throttle for email, then
// issues a token and enqueues the send job.
func RunRequestEmailVerification(ctx context.Context, userID, email string, deps EmailVerificationDeps) RequestVerificationResult {
	identity := normalizeEmail(email)

	count, err := deps.Throttle.CheckAndMarkSendAllowed(ctx, identity, deps.Cooldown, deps.DailyLimit)
	if err != nil {
		switch {
		case deps.CooldownActive != nil && errors.Is(err, deps.CooldownActive):
			return RequestVerificationResult{Failure: RequestVerificationFailureCooldown, Err: err}
		case deps.DailyLimitExceeded != nil && errors.Is(err, deps.DailyLimitExceeded):
			return RequestVerificationResult{Failure: RequestVerificationFailureDailyLimit, Err: err}
		default:
			return RequestVerificationResult{Failure: RequestVerificationFailureStore, Err: err}
		}
	}

	token, err := RunIssueEmailVerification(userID, email, deps)
	if err != nil {
		return RequestVerificationResult{Failure: RequestVerificationFailureIssue, Err: err, DailyCount: count}
	}

	if err := deps.Enqueue(ctx, email, token); err != nil {
		return RequestVerificationResult{Failure: RequestVerificationFailureDispatch, Err: err, DailyCount: count}
	}

	return RequestVerificationResult{DailyCount: count}
}

// RunConsumeEmailVerification decodes tokenStr, rejects spent tokens and
// blacklists the token id for the rest of its lifetime before returning the
// subject. The token is burned even when the email check or activation fails
// afterwards.
func RunConsumeEmailVerification(ctx context.Context, tokenStr string, deps EmailVerificationDeps) ConsumeVerificationResult {
	claims, err := deps.Codec.Decode(tokenStr, jwt.KindEmailVerification)
	if err != nil {
		return ConsumeVerificationResult{Failure: ConsumeVerificationFailureDecode, Err: err}
	}
	res := ConsumeVerificationResult{
		UserID:  claims.UserID(),
		Email:   claims.Email,
		TokenID: claims.TokenID(),
	}

	used, err := deps.Revocations.IsBlacklisted(ctx, res.TokenID)
	if err != nil {
		res.Failure, res.Err = ConsumeVerificationFailureStore, err
		return res
	}
	if used {
		res.Failure = ConsumeVerificationFailureAlreadyUsed
		return res
	}

	res.Revoked = claims.Remaining(deps.Codec.Now())
	if res.Revoked <= 0 {
		res.Failure, res.Err = ConsumeVerificationFailureDecode, jwt.ErrExpired
		return res
	}
	first, err := deps.Revocations.BlacklistOnce(ctx, res.TokenID, res.Revoked)
	if err != nil {
		res.Failure, res.Err = ConsumeVerificationFailureStore, err
		return res
	}
	if !first {
		res.Failure = ConsumeVerificationFailureAlreadyUsed
		return res
	}

	if deps.StoredEmail != nil {
		stored, err := deps.StoredEmail(ctx, res.UserID)
		if err != nil {
			res.Err = err
			res.Failure = ConsumeVerificationFailureStore
			if deps.NotFound != nil && errors.Is(err, deps.NotFound) {
				res.Failure = ConsumeVerificationFailureUserNotFound
			}
			return res
		}
		if !sameEmail(stored, res.Email) {
			res.Failure = ConsumeVerificationFailureEmailMismatch
			return res
		}
	}

	if deps.Activate != nil {
		if err := deps.Activate(ctx, res.UserID); err != nil {
			res.Err = err
			res.Failure = ConsumeVerificationFailureActivate
			if deps.NotFound != nil && errors.Is(err, deps.NotFound) {
				res.Failure = ConsumeVerificationFailureUserNotFound
			}
			return res
		}
	}

	return res
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func sameEmail(a, b string) bool {
	return a != "" && normalizeEmail(a) == normalizeEmail(b)
}
