// Package rate provides Redis-backed attempt counters for the second-factor
// step of a login.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefix:
//   - asf: failed second-factor attempts per pending login id
//
// # What this package must NOT do
//
//   - Decide what happens after exhaustion (the Engine rejects the login).
//   - Be imported outside the authcore module.
package rate
