package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cassiomorais/checkout/internal/domain/session"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret     = "0123456789abcdef0123456789abcdef"
	testBackendURL = "https://console.example.com/api"
)

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims() Claims {
	return Claims{
		Email:    "payer@example.com",
		Scope:    "tenant",
		TenantID: "tenant-42",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func serveAuth(header string) (*httptest.ResponseRecorder, *Principal) {
	var got *Principal
	handler := RequireAuth(testSecret, testBackendURL)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := PrincipalFrom(r.Context()); ok {
			got = &p
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w, got
}

func TestRequireAuth_ValidToken(t *testing.T) {
	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims())

	w, p := serveAuth("Bearer " + token)

	assert.Equal(t, http.StatusNoContent, w.Code)
	require.NotNil(t, p)
	assert.Equal(t, "user-1", p.Subject)
	assert.Equal(t, session.AuthContext{
		Token:    token,
		BaseURL:  testBackendURL,
		Scope:    session.ScopeTenant,
		TenantID: "tenant-42",
		Email:    "payer@example.com",
	}, p.Auth)
}

func TestRequireAuth_Rejections(t *testing.T) {
	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	noSubject := validClaims()
	noSubject.Subject = ""

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"missing header", "", "auth_required"},
		{"basic scheme", "Basic dXNlcjpwYXNz", "auth_invalid_scheme"},
		{"garbage token", "Bearer not-a-jwt", "auth_invalid"},
		{"wrong secret", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("another-secret-another-secret-xx"), validClaims()), "auth_invalid"},
		{"wrong algorithm", "Bearer " + signToken(t, jwt.SigningMethodHS512, []byte(testSecret), validClaims()), "auth_invalid"},
		{"expired", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), expired), "auth_invalid"},
		{"no subject", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), noSubject), "auth_invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, p := serveAuth(tt.header)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Nil(t, p)
			assert.Contains(t, w.Body.String(), tt.code)
		})
	}
}

func TestRequireAuth_DefaultsToClientScope(t *testing.T) {
	claims := validClaims()
	claims.Scope = ""
	claims.TenantID = ""

	w, p := serveAuth("Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), claims))

	assert.Equal(t, http.StatusNoContent, w.Code)
	require.NotNil(t, p)
	assert.Equal(t, session.ScopeClient, p.Auth.Scope)
	assert.Empty(t, p.Auth.PathPrefix())
}
