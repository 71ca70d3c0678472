// Package permission holds the closed role enumeration, the gated modules and
// actions, and the role/module/action matrix used by authorization checks.
//
// # Representation
//
// Every (module, action) pair is assigned a bit by [Registry]. A [Matrix]
// compiles its grants into one [Mask64] per role, so a check is a map read and
// a bit test. Roles, modules and actions outside the enumerations never match.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O. Persisting the
// grant table is the job of the store packages; seeding it is the Engine's.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import authcore, session, or challenge.
//   - Change a frozen matrix.
package permission
