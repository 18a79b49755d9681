// Package rate implements the per-IP login throttle backed by Redis counters.
//
// # Architecture boundaries
//
// This package owns key layout and fixed-window counting. It does NOT decide
// what happens when a caller is throttled; the Engine maps [ErrRateLimited]
// to its own error and audit event.
package rate
