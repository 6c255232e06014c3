// Package flows contains the orchestration for every Engine operation.
//
// Each flow function (RunLogin, RunRefresh, RunLogout,
// RunRequestEmailVerification, RunConsumeEmailVerification, RunSocialLogin)
// accepts a typed dependency struct and returns a result carrying a failure
// kind. The root package maps failure kinds to its public errors, so flows
// never need to import it.
//
// # Session model
//
// A user has at most one stored refresh token. Issuing a session overwrites
// it, logout clears it, and refresh compares the presented token with it in
// constant time. Concurrent writers race on last-writer-wins.
//
// # Architecture boundaries
//
// Flows coordinate the token codec, revocation and throttle stores, identity
// store callbacks and the task dispatcher. They do NOT own any of these
// resources; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import authcore (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency interfaces.
package flows
