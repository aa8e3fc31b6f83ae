package auth

import (
	"context"
	"sort"
	"strings"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"

	scopePrefix = "SCOPE_"
)

// Principal is the authenticated caller of a single request. It is passed
// explicitly into service calls; nothing reads it from global state.
type Principal struct {
	Username    string
	Authorities map[string]struct{}
	Token       string // raw bearer token, relayed to downstream services
}

// HasRole reports whether the caller holds role as a realm role.
func (p Principal) HasRole(role string) bool {
	_, ok := p.Authorities[role]
	return ok
}

// HasRoleOrScope also accepts role granted as a scope (SCOPE_<role>).
func (p Principal) HasRoleOrScope(role string) bool {
	if p.HasRole(role) {
		return true
	}
	_, ok := p.Authorities[scopePrefix+role]
	return ok
}

func (p Principal) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if p.HasRole(r) {
			return true
		}
	}
	return false
}

func (p Principal) HasAnyRoleOrScope(roles ...string) bool {
	for _, r := range roles {
		if p.HasRoleOrScope(r) {
			return true
		}
	}
	return false
}

// IsAdmin only honours the realm role; a scope named ADMIN is not enough.
func (p Principal) IsAdmin() bool { return p.HasRole(RoleAdmin) }

// AuthorityList returns the authorities sorted, for logging.
func (p Principal) AuthorityList() []string {
	out := make([]string, 0, len(p.Authorities))
	for a := range p.Authorities {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Resolve builds the principal from verified claims: the union of scope
// authorities and realm roles, deduplicated.
func Resolve(c *Claims, token string) Principal {
	set := make(map[string]struct{})
	for _, s := range c.Scope {
		if s = strings.TrimSpace(s); s != "" {
			set[scopePrefix+s] = struct{}{}
		}
	}
	for _, s := range c.Scp {
		if s = strings.TrimSpace(s); s != "" {
			set[scopePrefix+s] = struct{}{}
		}
	}
	if c.RealmAccess != nil {
		for _, r := range c.RealmAccess.Roles {
			if r != "" {
				set[r] = struct{}{}
			}
		}
	}

	name := c.PreferredUsername
	if name == "" {
		name = c.Subject
	}
	return Principal{Username: name, Authorities: set, Token: token}
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}
