// Package authz implements the platform's authorization model: a pure
// resolver over platform roles and tenant-scoped grants, plus the grant
// and role management operations built on top of it.
//
// The resolver is deliberately free of I/O so its rules can be tested
// exhaustively; the Service wraps it with store access, bounded retries,
// escalation guards, and the audit trail. Authorization state is never
// cached: every request resolves against current store state, so a
// revocation takes effect immediately.
package authz
