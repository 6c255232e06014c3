// Package jwt encodes and decodes the signed, time-bound claim sets used for
// access, refresh and email-verification tokens.
//
// # Kinds
//
// Every claim set carries a "type" discriminator ([KindAccess], [KindRefresh],
// [KindEmailVerification]). [Codec.Decode] rejects a token whose kind differs
// from the expected one with [ErrWrongKind]. Refresh and email-verification
// claim sets must carry a token id (jti); encoding or decoding one without it
// is a programmer error and panics.
//
// # Architecture boundaries
//
// The codec is a pure function of its input and the current time. It does not
// consult the revocation store; single-use and supersession checks belong to
// the flows that call it.
//
// # What this package must NOT do
//
//   - Perform I/O of any kind.
//   - Import authcore or any internal package.
//   - Return raw token contents inside error messages.
package jwt
