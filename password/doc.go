// Package password implements password hashing and verification with Argon2id
// defaults and bcrypt compatibility for imported accounts.
//
// # Output format
//
// New hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Multi] dispatches verification on the hash prefix so stored bcrypt hashes
// ($2a$, $2b$, $2y$) keep working; [Multi.NeedsUpgrade] reports true for them so
// the caller can rehash after the next successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other authcore package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
