// Package social exchanges OAuth authorization codes for normalized external
// identities.
//
// An [Adapter] implements the three-step exchange for one provider:
// code to access token, access token to raw profile, raw profile to
// [Identity]. Adapters are collected into an immutable [Registry] at process
// start and passed to the engine; there is no global registration.
//
// # What this package must NOT do
//
//   - Create or look up local users. That belongs to the identity store.
//   - Retry failed exchanges. Authorization codes are single-use.
//   - Log provider access tokens.
package social
