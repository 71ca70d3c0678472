// Package session provides the session model, opaque token generation, and a
// Redis-backed session store with compact binary encoding.
//
// # Tokens
//
// [NewToken] returns 32 random bytes encoded as unpadded base64url. Stores
// only ever see the SHA-256 of a token, so a leaked store does not leak
// usable credentials.
//
// # Architecture boundaries
//
// This package owns the [Session] model, token hashing, and the [RedisStore].
// It does NOT read clocks to decide validity, resolve roles, or enforce
// authentication policy. Those belong to the Engine.
//
// # What this package must NOT do
//
//   - Import authcore, challenge, or permission.
//   - Store raw tokens.
//   - Delete sessions before they expire; revocation leaves a tombstone.
package session
