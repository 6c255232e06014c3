// Package credential verifies email and password pairs against an identity
// lookup using constant-time hash comparison.
//
// Unknown emails are checked against a dummy hash so that a miss costs the
// same as a wrong password, and both return the same outcome.
package credential
