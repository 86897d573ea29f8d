package auth

import (
	"context"

	"github.com/mind-engage/mindengage-testseries/internal/rbac"
)

// SubjectFromContext returns the authenticated user id, or "".
func SubjectFromContext(ctx context.Context) string {
	return rbac.PrincipalFrom(ctx).Subject
}
