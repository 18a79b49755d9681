package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/MrEthical07/tokenguard"
	"github.com/MrEthical07/tokenguard/middleware"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 16

type Handler struct {
	engine *tokenguard.Engine
	log    *zap.Logger
}

func NewHandler(engine *tokenguard.Engine, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{engine: engine, log: log}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid_request", "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeBadRequest(w, "invalid_request", "email and password are required")
		return
	}

	pair, err := h.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	h.writeTokens(w, pair)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	token, ok := refreshTokenFrom(w, r)
	if !ok {
		return
	}

	pair, err := h.engine.Refresh(r.Context(), token)
	if err != nil {
		middleware.ClearTokenCookies(w)
		writeEngineError(w, err)
		return
	}
	h.writeTokens(w, pair)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := refreshTokenFrom(w, r)
	if !ok {
		return
	}

	if err := h.engine.Logout(r.Context(), token); err != nil {
		writeEngineError(w, err)
		return
	}
	middleware.ClearTokenCookies(w)
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "unauthorized", "authentication required")
		return
	}

	n, err := h.engine.RevokeAllSessions(r.Context(), res.UserID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	middleware.ClearTokenCookies(w)
	writeJSON(w, http.StatusOK, RevokeAllResponse{OK: true, Revoked: n})
}

func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "unauthorized", "authentication required")
		return
	}

	sessions, err := h.engine.ListActiveSessions(r.Context(), res.UserID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *Handler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "unauthorized", "authentication required")
		return
	}

	if err := h.engine.RevokeSession(r.Context(), res.UserID, chi.URLParam(r, "id")); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

func (h *Handler) Unlock(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "unauthorized", "authentication required")
		return
	}

	userID := chi.URLParam(r, "id")
	if err := h.engine.UnlockAccount(r.Context(), userID, res.UserID); err != nil {
		writeEngineError(w, err)
		return
	}
	h.log.Info("account unlocked", zap.String("user_id", userID), zap.String("actor", res.UserID))
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

func (h *Handler) writeTokens(w http.ResponseWriter, pair *tokenguard.TokenPair) {
	middleware.SetTokenCookies(w, pair, h.engine.AccessTTL(), h.engine.RefreshTTL())
	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		SessionID:        pair.SessionID,
	})
}

// refreshTokenFrom reads the token from the JSON body, then the cookie. It
// writes the 400 itself when the body is malformed.
func refreshTokenFrom(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req RefreshRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid_request", "invalid request body")
		return "", false
	}
	if req.RefreshToken != "" {
		return req.RefreshToken, true
	}
	return middleware.RefreshTokenFromRequest(r), true
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}
