// Package stores provides the Redis-backed revocation and throttle state used
// by the token flows.
//
// # Components
//
//   - [RevocationStore]: blacklist of spent token ids (blacklist_token:{jti}),
//     each entry living exactly as long as the token it revokes.
//   - [ThrottleStore]: per-identity send cooldown (email_cooldown:{identity})
//     and daily counter (email_daily_count:{identity}) with TTL to midnight.
//
// Multi-step throttle updates run as a single Lua script so concurrent
// requests for the same identity cannot interleave between the checks.
//
// # Architecture boundaries
//
// This package owns persistence and atomicity of cache state. It does not
// decode tokens or decide what a rejection means to the caller; those
// responsibilities belong to internal/flows.
//
// # What this package must NOT do
//
//   - Import authcore or any sibling internal package.
//   - Store raw token strings. Only token ids are written.
//   - Treat a cache failure as "not blacklisted" or "allowed".
package stores
