package middleware

import (
	"net/http"
	"time"

	"github.com/MrEthical07/tokenguard"
)

const (
	AccessCookieName  = "access_token"
	RefreshCookieName = "refresh_token"

	// RefreshCookiePath scopes the refresh cookie to the auth endpoints so
	// it is never sent with ordinary API calls.
	RefreshCookiePath = "/auth"
)

// SetTokenCookies writes both tokens as HttpOnly, Secure, SameSite=Strict
// cookies whose Max-Age matches the token lifetimes.
func SetTokenCookies(w http.ResponseWriter, pair *tokenguard.TokenPair, accessTTL, refreshTTL time.Duration) {
	http.SetCookie(w, tokenCookie(AccessCookieName, pair.AccessToken, "/", accessTTL))
	http.SetCookie(w, tokenCookie(RefreshCookieName, pair.RefreshToken, RefreshCookiePath, refreshTTL))
}

// ClearTokenCookies expires both cookies.
func ClearTokenCookies(w http.ResponseWriter) {
	http.SetCookie(w, tokenCookie(AccessCookieName, "", "/", -1))
	http.SetCookie(w, tokenCookie(RefreshCookieName, "", RefreshCookiePath, -1))
}

// RefreshTokenFromRequest returns the refresh cookie value, or "".
func RefreshTokenFromRequest(r *http.Request) string {
	c, err := r.Cookie(RefreshCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func tokenCookie(name, value, path string, ttl time.Duration) *http.Cookie {
	maxAge := int(ttl / time.Second)
	if ttl < 0 {
		maxAge = -1
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
}
