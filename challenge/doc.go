// Package challenge issues and verifies the short-lived signed tokens that
// carry a login between the password step and the second-factor step.
//
// A token names the user id and username that passed the password check and
// is bound to the second-factor purpose, so it cannot be replayed as any other
// credential. The Engine re-reads the account on redemption; the token alone
// never grants a session.
package challenge
