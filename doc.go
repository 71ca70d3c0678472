// Package authcore is the identity and access core of the business platform:
// credential storage, password verification, TOTP second factor, opaque
// 24-hour sessions and a role × module permission matrix.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Login flow
//
//	Authenticate(username, password)
//	  ├─ rejected          → ErrInvalidCredentials
//	  ├─ exempt account    → session issued (audited bypass)
//	  └─ otherwise         → Pending{Token, Secret, ProvisioningURI, QRCode}
//	VerifySecondFactor(pending, code)
//	  ├─ wrong code        → still pending, ErrInvalidSecondFactor
//	  └─ valid code        → session issued
//
// Every request then runs ValidateSession(token) → RoleOf(user) →
// HasPermission(role, module, action).
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config], the store
// interfaces and value types. Leaf packages (password, permission, session, challenge)
// own one concern each and never import authcore; adapter packages (sqlstore,
// middleware) do. Audit dispatch, metrics and the attempt limiter live under internal/.
//
// # What this package must NOT do
//
//   - Log or return passwords, password digests, TOTP secrets of other
//     accounts, or raw session tokens after issuance.
//   - Delete users or sessions; accounts are deactivated and sessions revoked.
//   - Start background work other than the optional audit dispatcher.
package authcore
