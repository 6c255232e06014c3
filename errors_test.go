package authcore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/MrEthical07/authcore/jwt"
)

func TestErrorKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{nil, KindNone},
		{ErrExpired, KindExpired},
		{fmt.Errorf("wrapped: %w", ErrSuperseded), KindSuperseded},
		{&ThrottleError{Reason: ErrCooldownActive}, KindThrottled},
		{&ThrottleError{Reason: ErrDailyLimitExceeded}, KindThrottled},
		{storeUnavailable(errors.New("dial tcp: refused")), KindStoreUnavailable},
		{fmt.Errorf("%w: %q", ErrUnknownProvider, "x"), KindUnknownProvider},
		{ErrEngineNotReady, KindNotReady},
		{errors.New("boom"), KindInternal},
	}
	for _, tc := range cases {
		if got := ErrorKindOf(tc.err); got != tc.want {
			t.Fatalf("ErrorKindOf(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestThrottleError(t *testing.T) {
	err := error(&ThrottleError{Reason: ErrDailyLimitExceeded})

	if !errors.Is(err, ErrThrottled) || !errors.Is(err, ErrDailyLimitExceeded) {
		t.Fatal("throttle error must match ErrThrottled and its reason")
	}
	if errors.Is(err, ErrCooldownActive) {
		t.Fatal("throttle error must not match the other reason")
	}
	if ThrottleReason(err) != ErrDailyLimitExceeded {
		t.Fatalf("reason = %v", ThrottleReason(err))
	}
	if ThrottleReason(ErrAuthFailed) != nil {
		t.Fatal("non-throttle errors have no reason")
	}
	if err.Error() != "throttled: daily send limit exceeded" {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestMapTokenError(t *testing.T) {
	if mapTokenError(jwt.ErrExpired) != ErrExpired {
		t.Fatal("expired not mapped")
	}
	if mapTokenError(fmt.Errorf("x: %w", jwt.ErrWrongKind)) != ErrWrongKind {
		t.Fatal("wrong kind not mapped")
	}
	if mapTokenError(errors.New("signature is invalid")) != ErrMalformed {
		t.Fatal("other decode errors must be malformed")
	}
}
