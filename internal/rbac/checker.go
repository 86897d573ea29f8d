package rbac

import (
	"context"
	"strings"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	Subject string
	Role    string
}

// Policy maps roles to grants. A grant is an exact permission, "*", or a
// prefix ending in "*" such as "progress:view-*".
type Policy struct {
	grants map[string][]string
}

func NewPolicy(grants map[string][]string) *Policy {
	if grants == nil {
		grants = RolePermissions
	}
	return &Policy{grants: grants}
}

// Default is the policy the HTTP middleware enforces.
var Default = NewPolicy(nil)

func (p *Policy) Allows(role, perm string) bool {
	if role == "" || perm == "" {
		return false
	}
	for _, g := range p.grants[role] {
		if grantMatches(g, perm) {
			return true
		}
	}
	return false
}

func (p *Policy) AllowsAny(role string, perms ...string) bool {
	for _, perm := range perms {
		if p.Allows(role, perm) {
			return true
		}
	}
	return false
}

// CanAccess decides access to a record that belongs to owner, such as a
// learner's progress or attempt. The owner needs ownPerm; anyone else needs
// allPerm. An empty owner never matches the caller.
func (p *Policy) CanAccess(pr Principal, owner, ownPerm, allPerm string) bool {
	if pr.Subject != "" && owner != "" && owner == pr.Subject && p.Allows(pr.Role, ownPerm) {
		return true
	}
	return p.Allows(pr.Role, allPerm)
}

func grantMatches(grant, perm string) bool {
	if grant == "*" || grant == perm {
		return true
	}
	prefix, wild := strings.CutSuffix(grant, "*")
	return wild && strings.HasPrefix(perm, prefix)
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) Principal {
	p, _ := ctx.Value(principalKey{}).(Principal)
	return p
}

// WithRole sets the role and keeps any subject already present.
func WithRole(ctx context.Context, role string) context.Context {
	p := PrincipalFrom(ctx)
	p.Role = role
	return WithPrincipal(ctx, p)
}

func RoleFromContext(ctx context.Context) string { return PrincipalFrom(ctx).Role }

// CanAccess applies the Default policy to the caller stored in ctx.
func CanAccess(ctx context.Context, owner, ownPerm, allPerm string) bool {
	return Default.CanAccess(PrincipalFrom(ctx), owner, ownPerm, allPerm)
}
