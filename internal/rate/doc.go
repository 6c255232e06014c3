// Package rate provides Redis-backed fixed-window counters for failed login
// attempts.
//
// # Window semantics
//
// INCR plus EXPIRE on the first hit. Key prefixes:
//   - login_attempts:{email}
//   - login_attempts_ip:{ip}
//
// # What this package must NOT do
//
//   - Decide whether a credential is valid. It only counts failures.
//   - Be imported outside the authcore module.
package rate
