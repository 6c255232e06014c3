package authcore

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/authcore/jwt"
)

var (
	// ErrExpired is returned for a token presented at or after its expiry.
	ErrExpired = errors.New("token expired")
	// ErrMalformed is returned for a token that fails parsing or signature checks.
	ErrMalformed = errors.New("token malformed")
	// ErrWrongKind is returned for a valid token of another kind.
	ErrWrongKind = errors.New("token kind mismatch")
	// ErrAlreadyUsed is returned when a single-use token is presented again.
	ErrAlreadyUsed = errors.New("token already used")
	// ErrSuperseded is returned for a refresh token that is no longer the
	// user's stored one.
	ErrSuperseded = errors.New("refresh token superseded")
	// ErrAuthFailed is returned for bad credentials. It never says whether the
	// email exists.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrThrottled matches every *ThrottleError.
	ErrThrottled = errors.New("throttled")
	// ErrCooldownActive is the throttle reason while a send cooldown runs.
	ErrCooldownActive = errors.New("send cooldown active")
	// ErrDailyLimitExceeded is the throttle reason once the daily quota is used.
	ErrDailyLimitExceeded = errors.New("daily send limit exceeded")
	// ErrUnknownProvider is returned for an unregistered social provider name.
	ErrUnknownProvider = errors.New("unknown social provider")
	// ErrSocialLoginFailed wraps any provider adapter failure.
	ErrSocialLoginFailed = errors.New("social login failed")
	// ErrStoreUnavailable wraps cache, identity store and dispatcher I/O
	// failures. It is the only kind worth retrying.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrUserNotFound is returned by identity stores on a miss.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken is returned by identity stores on a duplicate email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrLoginRateLimited is returned after too many failed logins.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrInvalidInput is returned for requests that fail basic validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEngineNotReady is returned by a nil or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ThrottleError reports which send limit rejected a request.
type ThrottleError struct {
	// Reason is ErrCooldownActive or ErrDailyLimitExceeded.
	Reason error
}

func (e *ThrottleError) Error() string {
	return "throttled: " + e.Reason.Error()
}

// Is makes every ThrottleError match ErrThrottled.
func (e *ThrottleError) Is(target error) bool {
	return target == ErrThrottled
}

func (e *ThrottleError) Unwrap() error {
	return e.Reason
}

// ErrorKind is a stable, transport-friendly name for an error category.
type ErrorKind string

const (
	KindNone              ErrorKind = ""
	KindExpired           ErrorKind = "expired"
	KindMalformed         ErrorKind = "malformed"
	KindWrongKind         ErrorKind = "wrong_kind"
	KindAlreadyUsed       ErrorKind = "already_used"
	KindSuperseded        ErrorKind = "superseded"
	KindAuthFailed        ErrorKind = "auth_failed"
	KindThrottled         ErrorKind = "throttled"
	KindUnknownProvider   ErrorKind = "unknown_provider"
	KindSocialLoginFailed ErrorKind = "social_login_failed"
	KindStoreUnavailable  ErrorKind = "store_unavailable"
	KindUserNotFound      ErrorKind = "user_not_found"
	KindEmailTaken        ErrorKind = "email_taken"
	KindLoginRateLimited  ErrorKind = "login_rate_limited"
	KindInvalidInput      ErrorKind = "invalid_input"
	KindNotReady          ErrorKind = "not_ready"
	KindInternal          ErrorKind = "internal"
)

var errorKinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrExpired, KindExpired},
	{ErrMalformed, KindMalformed},
	{ErrWrongKind, KindWrongKind},
	{ErrAlreadyUsed, KindAlreadyUsed},
	{ErrSuperseded, KindSuperseded},
	{ErrAuthFailed, KindAuthFailed},
	{ErrThrottled, KindThrottled},
	{ErrUnknownProvider, KindUnknownProvider},
	{ErrSocialLoginFailed, KindSocialLoginFailed},
	{ErrStoreUnavailable, KindStoreUnavailable},
	{ErrUserNotFound, KindUserNotFound},
	{ErrEmailTaken, KindEmailTaken},
	{ErrLoginRateLimited, KindLoginRateLimited},
	{ErrInvalidInput, KindInvalidInput},
	{ErrEngineNotReady, KindNotReady},
}

// ErrorKindOf classifies err. nil yields KindNone and unrecognized errors
// yield KindInternal.
func ErrorKindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// ThrottleReason returns ErrCooldownActive or ErrDailyLimitExceeded for a
// throttle error, and nil otherwise.
func ThrottleReason(err error) error {
	var te *ThrottleError
	if errors.As(err, &te) {
		return te.Reason
	}
	return nil
}

func mapTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrWrongKind):
		return ErrWrongKind
	default:
		return ErrMalformed
	}
}

func storeUnavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
