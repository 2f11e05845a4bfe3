package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthContext_Authenticated(t *testing.T) {
	assert.False(t, AuthContext{}.Authenticated())
	assert.False(t, AuthContext{Token: "  "}.Authenticated())
	assert.True(t, AuthContext{Token: "abc"}.Authenticated())
}

func TestAuthContext_PathPrefix(t *testing.T) {
	assert.Equal(t, "", AuthContext{Scope: ScopeClient}.PathPrefix())
	assert.Equal(t, "/tenant", AuthContext{Scope: ScopeTenant}.PathPrefix())
	assert.Equal(t, "/admin", AuthContext{Scope: ScopeAdmin}.PathPrefix())
	assert.Equal(t, "", AuthContext{}.PathPrefix())
}

func TestParseScope(t *testing.T) {
	assert.Equal(t, ScopeAdmin, ParseScope("ADMIN"))
	assert.Equal(t, ScopeTenant, ParseScope(" tenant "))
	assert.Equal(t, ScopeClient, ParseScope(""))
	assert.Equal(t, ScopeClient, ParseScope("superuser"))
}
