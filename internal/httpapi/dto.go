package httpapi

import "time"

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest is also the logout body. An empty RefreshToken falls back
// to the refresh cookie.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type TokenResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	SessionID        string    `json:"session_id"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

type RevokeAllResponse struct {
	OK      bool `json:"ok"`
	Revoked int  `json:"revoked"`
}
