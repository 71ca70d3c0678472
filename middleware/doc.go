// Package middleware exposes net/http guards built on authcore session
// validation and the permission matrix.
//
// # Guards
//
//   - [RequireSession]: valid, unexpired, unrevoked session or 401.
//   - [RequirePermission]: session plus role × module × action check, or 403.
//
// Tokens are read from "Authorization: Bearer <token>" or, failing that, the
// [SessionCookie] cookie. The owner's id is injected into the request
// context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT implement
// authentication logic itself; every decision is delegated to the Engine.
//
// # What this package must NOT do
//
//   - Hash, store or log session tokens.
//   - Access the stores directly.
//   - Issue sessions or run the login flow.
package middleware
