// ABOUTME: HTTP middleware for bearer token authentication on agent endpoints
// ABOUTME: Rejects requests with {"detail": ...} bodies and adds the identity to context

package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// Response details written on rejection.
const (
	DetailNotAuthenticated = "Not authenticated"
	DetailTokenExpired     = "Token expired"
	DetailKeyNotFound      = "Public key not found"
	DetailForbidden        = "Insufficient permissions"
)

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns "" when the header is missing or not a bearer credential.
func extractBearerToken(authHeader string) string {
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Detail maps a verification error to the client-facing detail message.
func Detail(err error) string {
	var invalid *InvalidTokenError
	switch {
	case errors.Is(err, ErrExpiredToken):
		return DetailTokenExpired
	case errors.Is(err, ErrKeyNotFound):
		return DetailKeyNotFound
	case errors.As(err, &invalid):
		return "Invalid token: " + invalid.Reason
	default:
		return "Invalid token: " + err.Error()
	}
}

// WriteDetail writes a {"detail": msg} JSON error response.
func WriteDetail(w http.ResponseWriter, status int, msg string) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": msg})
}

// Middleware creates an HTTP middleware that verifies bearer tokens and adds
// AuthContext to the request context.
func Middleware(verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r.Header.Get("Authorization"))
			if token == "" {
				WriteDetail(w, http.StatusUnauthorized, DetailNotAuthenticated)
				return
			}

			claims, err := verifier.Verify(r.Context(), token)
			if err != nil {
				if errors.Is(err, ErrExpiredToken) {
					logger.Info("token expired", "path", r.URL.Path)
				} else {
					logger.Warn("token rejected", "path", r.URL.Path, "error", err)
				}
				WriteDetail(w, http.StatusUnauthorized, Detail(err))
				return
			}

			authCtx := &AuthContext{
				Subject:  claims.Subject,
				Username: claims.Username,
				Roles:    claims.Roles,
			}
			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), authCtx)))
		})
	}
}

// RequireRole creates an HTTP middleware that requires role.
// Must be used after Middleware.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := FromContext(r.Context())
			if authCtx == nil {
				WriteDetail(w, http.StatusUnauthorized, DetailNotAuthenticated)
				return
			}

			if !authCtx.HasRole(role) {
				WriteDetail(w, http.StatusForbidden, DetailForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
