// Package password implements password hashing and verification with Argon2id
// defaults and bcrypt compatibility.
//
// # Output format
//
// Argon2id digests are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Salt and hash use unpadded standard base64; padded input is accepted.
// [ParseDigest] decodes either family into a [Digest].
//
// bcrypt digests use the usual $2a$/$2b$/$2y$ modular-crypt form. Every digest
// names its own algorithm and parameters, so [Hasher.Verify] needs no side
// channel to pick the right verifier.
//
// [Hasher.NeedsUpgrade] returns true for digests produced by another family or
// with weaker parameters, so the caller can re-hash on the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Account policy (who may
// register, which role they get) is enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive digests.
//   - Import any other authcore package.
//   - Log plaintext passwords or digests.
package password
