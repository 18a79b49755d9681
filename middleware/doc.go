// Package middleware adapts tokenguard access-token validation and token
// cookies to net/http.
//
// [Guard] reads the access_token cookie, falling back to an
// Authorization: Bearer header, calls ValidateAccess and stores the
// [tokenguard.AuthResult] in the request context. [RequireRole] gates a
// route on the validated role.
//
// This package makes no authentication decisions of its own; every
// accept/reject comes from the engine.
package middleware
