// Package lockout implements the per-user failed-login counter and timed
// lock as a pure state machine.
//
// The package computes new [State] values only. Persisting them on the user
// record, emitting audit events and surfacing errors belong to the engine.
package lockout
