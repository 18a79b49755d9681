// Package internal holds packages private to tokenguard.
//
// # Sub-packages
//
//   - appconfig: process configuration for the tokenguard binary
//   - audit: async event dispatch (Dispatcher and Sink implementations)
//   - httpapi: chi router exposing the engine over HTTP
//   - lockout: failed-login bookkeeping and lock decisions
//   - logger: zap logger construction
//   - metrics: lock-free counters and latency histograms
//   - rate: Redis-backed per-IP login throttle
//   - security: security posture report
package internal
