package session

import "strings"

// Scope is the console audience the caller belongs to.
type Scope string

const (
	ScopeClient Scope = "client"
	ScopeTenant Scope = "tenant"
	ScopeAdmin  Scope = "admin"
)

// TenantHeader carries the tenant id on backend requests.
const TenantHeader = "X-Tenant-ID"

// AuthContext is the caller identity an engine talks to the backend with.
type AuthContext struct {
	Token    string
	BaseURL  string
	Scope    Scope
	TenantID string
	Email    string
}

// Authenticated reports whether a bearer token is present.
func (a AuthContext) Authenticated() bool {
	return strings.TrimSpace(a.Token) != ""
}

// PathPrefix returns the scope-specific prefix for scoped backend resources.
func (a AuthContext) PathPrefix() string {
	switch a.Scope {
	case ScopeAdmin:
		return "/admin"
	case ScopeTenant:
		return "/tenant"
	default:
		return ""
	}
}

// ParseScope maps a claim value to a scope, defaulting to client.
func ParseScope(s string) Scope {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case ScopeAdmin:
		return ScopeAdmin
	case ScopeTenant:
		return ScopeTenant
	default:
		return ScopeClient
	}
}
