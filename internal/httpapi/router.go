// Package httpapi exposes the engine over HTTP with chi.
package httpapi

import (
	"net"
	"net/http"
	"time"

	"github.com/MrEthical07/tokenguard"
	promexport "github.com/MrEthical07/tokenguard/metrics/export/prometheus"
	"github.com/MrEthical07/tokenguard/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const AdminRole = "admin"

// NewRouter mounts the auth, session and admin routes plus /healthz.
func NewRouter(engine *tokenguard.Engine, log *zap.Logger) http.Handler {
	h := NewHandler(engine, log)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))
	r.Use(clientContext)
	r.Use(requestLogger(h.log))

	r.Get("/healthz", h.Healthz)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/refresh", h.Refresh)
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Guard(engine))
			r.Post("/logout-all", h.LogoutAll)
			r.Get("/sessions", h.Sessions)
			r.Delete("/sessions/{id}", h.RevokeSession)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Guard(engine))
		r.Use(middleware.RequireRole(AdminRole))
		r.Post("/users/{id}/unlock", h.Unlock)
	})

	return r
}

// NewMetricsRouter serves the Prometheus exposition. It belongs on an
// internal listener, never on the public one.
func NewMetricsRouter(engine *tokenguard.Engine) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", promexport.Handler(engine))
	return r
}

// clientContext copies the caller's address and User-Agent into the request
// context for lockout, fingerprinting and audit. It must run after RealIP.
func clientContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		ctx := tokenguard.WithClientIP(r.Context(), ip)
		ctx = tokenguard.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}
