package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/solarflow/solarflow/pkg/log"
)

// authMiddleware validates the Authorization bearer token when OIDC is
// configured. Without OIDC and admin emails the API is open (bypassAuth),
// which is the normal setup on a private home network.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = log.With(ctx, log.Ctx(ctx).With(slog.String("reqPath", r.URL.Path)))

		if s.bypassAuth {
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeJSONError(w, "missing authorization header", http.StatusUnauthorized)
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			log.Ctx(ctx).WarnContext(ctx, "invalid auth header")
			writeJSONError(w, "invalid auth header", http.StatusBadRequest)
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")

		email, _, err := s.authenticateToken(ctx, token)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "token validation failed", slog.Any("error", err))
			writeJSONError(w, "invalid id token", http.StatusUnauthorized)
			return
		}

		ctx = log.With(ctx, log.Ctx(ctx).With(slog.String("authEmail", email)))
		ctx = context.WithValue(ctx, emailContextKey, email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin gates mutating endpoints. With bypassAuth everyone is an
// admin; otherwise the authenticated email must be in the admin list.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if s.bypassAuth {
		return true
	}

	email, _ := r.Context().Value(emailContextKey).(string)
	for _, admin := range s.adminEmails {
		if email == admin {
			return true
		}
	}

	log.Ctx(r.Context()).WarnContext(r.Context(), "unauthorized for mutation", slog.String("email", email))
	writeJSONError(w, "unauthorized", http.StatusForbidden)
	return false
}

func (s *Server) authenticateToken(ctx context.Context, token string) (string, time.Time, error) {
	if s.oidcVerifier == nil {
		return "", time.Time{}, errors.New("no oidc audience configured")
	}

	idToken, err := s.oidcVerifier(ctx, token)
	if err != nil {
		return "", time.Time{}, err
	}

	var claims struct {
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return "", time.Time{}, err
	}
	if claims.Email == "" {
		return "", time.Time{}, errors.New("missing email claim")
	}
	return claims.Email, idToken.Expiry, nil
}
