// Package styling turns a tenant's taxonomy into declarative map
// rendering descriptors: MapLibre-style match expressions for color and
// size, and filter control descriptors for the map UI. Generation is pure
// over a schema snapshot; a per-tenant Redis cache in front of it is
// invalidated on every schema mutation.
package styling
