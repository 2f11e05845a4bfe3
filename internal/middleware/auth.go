package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cassiomorais/checkout/internal/domain/session"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const principalKey contextKey = "principal"

// Claims are the bearer token claims the console issues.
type Claims struct {
	Email    string `json:"email,omitempty"`
	Scope    string `json:"scope,omitempty"`
	TenantID string `json:"tenant_id,omitempty"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller. Auth carries the raw token so the
// engine can call the backend on the caller's behalf.
type Principal struct {
	Subject string
	Auth    session.AuthContext
}

// RequireAuth verifies an HS256 bearer token and stores the caller's
// Principal in the request context. backendURL becomes the AuthContext base URL.
func RequireAuth(jwtSecret, backendURL string) func(http.Handler) http.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	keyFunc := func(*jwt.Token) (any, error) {
		return []byte(jwtSecret), nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w, "missing authorization header", "auth_required")
				return
			}

			tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				writeAuthError(w, "invalid authorization scheme", "auth_invalid_scheme")
				return
			}

			claims := &Claims{}
			token, err := parser.ParseWithClaims(tokenString, claims, keyFunc)
			if err != nil || !token.Valid || claims.Subject == "" {
				writeAuthError(w, "invalid token", "auth_invalid")
				return
			}

			p := Principal{
				Subject: claims.Subject,
				Auth: session.AuthContext{
					Token:    tokenString,
					BaseURL:  backendURL,
					Scope:    session.ParseScope(claims.Scope),
					TenantID: claims.TenantID,
					Email:    claims.Email,
				},
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the caller stored by RequireAuth.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

func writeAuthError(w http.ResponseWriter, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error": msg,
		"code":  code,
	})
}
