// Package authcore issues, validates, refreshes and revokes the tokens of a
// web application's users.
//
// The public surface is [Engine], built once through [Builder]. It covers
// password login, refresh-token validation with a single stored session per
// user, single-use email verification tokens with per-address send throttling,
// signup, and social login through pluggable OAuth providers.
//
// # Architecture boundaries
//
// authcore owns the token lifecycle only. User records live behind the
// [IdentityStore] interface (see store/postgres), short-lived state lives in
// Redis, and outbound mail goes through a [TaskDispatcher]. Flow orchestration
// lives under internal/flows and never crosses this package's API.
//
// # Errors
//
// Every failure is a sentinel from this package (or wraps one), so callers
// branch with errors.Is or [ErrorKindOf]. Only [ErrStoreUnavailable] is worth
// retrying.
//
// Engine methods are safe for concurrent use after Build.
package authcore
