// Package api exposes the platform's HTTP surface: principal and tenant
// management, grants and invitations, taxonomy schemas, record
// assignments, and map rendering descriptors.
//
// Every route passes the shared middleware chain (request ID, logging,
// header-passed identity, tenant resolution) and an authorization action
// enforced before the handler runs. Domain errors map onto a fixed
// status scheme; denied requests always read "not authorized".
package api
