// Package sqlstore persists authcore accounts, sessions and the permission
// table in SQLite (modernc.org/sqlite) or PostgreSQL (pgx).
//
// Queries are written once with '?' placeholders and rebound per dialect by
// sqlx. The schema ships as embedded goose migrations; call [Store.Migrate]
// before first use.
//
// # Tables
//
//   - users: unique username and email, is_active flag, optional TOTP secret
//   - sessions: SHA-256 token hash (unique), expiry and revocation time
//   - permissions: one row per (role, module) with view/edit/delete flags
//
// # What this package must NOT do
//
//   - Delete users or sessions.
//   - Store raw session tokens.
//   - Interpret roles or permissions; that is authcore's job.
package sqlstore
