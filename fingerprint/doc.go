// Package fingerprint derives an opaque hash from connection metadata and
// decides whether two observations of a client differ enough to be worth
// flagging.
//
// A fingerprint change is a soft anomaly signal. Nothing in this package
// rejects or invalidates credentials.
package fingerprint
