// Package security derives a read-only security posture report from engine
// settings. It performs no I/O.
package security
