package middleware

import (
	"net/http"
	"strings"

	"github.com/segyhp/loan-engine/internal/auth"
	"github.com/segyhp/loan-engine/pkg/logger"
	"github.com/segyhp/loan-engine/pkg/response"
)

// WithAuth requires a valid bearer token and stores the caller in the request context.
func WithAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				logger.Log.Warn("unauthorized request", logger.String("url", r.RequestURI))
				response.Unauthorized(w, "missing bearer token")
				return
			}

			claims, err := auth.ParseToken(secret, strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				logger.Log.Warn("unauthorized request", logger.String("url", r.RequestURI), logger.Error(err))
				response.Unauthorized(w, "invalid token")
				return
			}

			caller, err := claims.Caller()
			if err != nil {
				logger.Log.Warn("unauthorized request", logger.String("url", r.RequestURI), logger.Error(err))
				response.Unauthorized(w, "invalid token subject")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithCaller(r.Context(), caller)))
		})
	}
}
