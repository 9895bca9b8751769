// Package middleware holds the HTTP middleware chain: request IDs,
// request logging, explicit header-passed caller identity, and tenant
// resolution. Authorization itself lives in pkg/authz; middleware here
// only establishes request context.
package middleware
