package rbac

import (
	"context"
	"strings"
)

// PermActForOthers lets a caller sequence, record or grade on behalf of a
// learner id other than its own token subject.
const PermActForOthers = "learners:any"

type Checker struct {
	RolePermissions map[string][]string
}

func NewChecker(rp map[string][]string) *Checker {
	if rp == nil {
		rp = RolePermissions
	}
	return &Checker{RolePermissions: rp}
}

// Has matches perm against the role's patterns. "*" grants everything and a
// trailing "*" matches a prefix ("answers:*").
func (c *Checker) Has(role, perm string) bool {
	for _, p := range c.RolePermissions[role] {
		if matchPerm(p, perm) {
			return true
		}
	}
	return false
}

func (c *Checker) Any(role string, perms ...string) bool {
	for _, p := range perms {
		if c.Has(role, p) {
			return true
		}
	}
	return false
}

// CanActFor reports whether a caller with role and subject may act for
// learnerID.
func (c *Checker) CanActFor(role, subject, learnerID string) bool {
	if learnerID == "" {
		return false
	}
	return learnerID == subject || c.Has(role, PermActForOthers)
}

func matchPerm(pattern, perm string) bool {
	if pattern == "*" || pattern == perm {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(perm, strings.TrimSuffix(pattern, "*"))
	}
	return false
}

type ctxKey struct{}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxKey{}, role)
}

func RoleFromContext(ctx context.Context) string {
	s, _ := ctx.Value(ctxKey{}).(string)
	return s
}
