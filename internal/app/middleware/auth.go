package middleware

import (
	"context"
	"net/http"
	"strings"

	"fintech/internal/app/apperr"
	"fintech/internal/app/handler"
	"fintech/internal/app/logger"
	"fintech/internal/app/session"
)

// Auth resolves the bearer token to a user and puts both into the request context
func Auth(sessions session.Reader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := logger.Get(r.Context(), "Middleware.Auth")

			reqHeader := r.Header.Get("Authorization")
			token := strings.TrimPrefix(reqHeader, "Bearer ")
			if token == reqHeader || token == "" {
				log.Debug().Msg("Invalid Authorization header")
				handler.WriteError(w, apperr.ErrUnauthorized, http.StatusUnauthorized)
				return
			}

			u, err := sessions.Read(r.Context(), token)
			if err != nil {
				log.Debug().Err(err).Msg("Token validation failed")
				handler.WriteError(w, apperr.ErrUnauthorized, http.StatusUnauthorized)
				return
			}

			log.Debug().Str("user", u.Username).Msg("User authorized")
			ctx := context.WithValue(r.Context(), handler.ContextKeyUser{}, u)
			ctx = context.WithValue(ctx, handler.ContextKeyToken{}, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
