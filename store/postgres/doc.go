// Package postgres implements authcore.IdentityStore on PostgreSQL with pgx.
//
// User ids are ULIDs. Emails are stored normalized and are unique; social
// users are unique on (social_type, social_id) and may have no email. The
// single stored refresh token lives on the user row.
//
// Errors carry samber/oops codes (USER_NOT_FOUND, USER_EMAIL_TAKEN, ...) and
// still match authcore.ErrUserNotFound and authcore.ErrEmailTaken with
// errors.Is.
//
// Schema changes ship as embedded golang-migrate migrations; see [Migrator].
package postgres
