// Package projection applies catalog events to the document projection.
//
// Each event type routes to a base handler wrapped by a middleware chain
// composed once at construction. An apply runs the whole chain inside one
// projection transaction; side effects outside the projection (search cache
// invalidation, relation mirroring) are queued and run only after commit.
package projection
