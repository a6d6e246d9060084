package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/securenotes/internal/server/auth"
)

// session resolves the bearer token into an auth.Session. A missing or
// invalid token leaves the request anonymous; the stores decide what an
// anonymous caller may see.
func (h *handlers) session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if ok && token != "" {
			if s, err := auth.ParseToken(strings.TrimSpace(token), h.jwtSecret); err == nil {
				r = r.WithContext(auth.WithSession(r.Context(), s))
			} else {
				h.logger.Debug(r.Context(), "ignoring bearer token", "error", err)
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handlers) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.Identity.RequireAdmin(r.Context(), auth.FromContext(r.Context())); err != nil {
			h.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handlers) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		h.logger.Info(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
