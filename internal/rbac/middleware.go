package rbac

import (
	"net/http"
)

func forbid(w http.ResponseWriter) { http.Error(w, "forbidden", http.StatusForbidden) }

// Require enforces a single permission.
func Require(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !Default.Allows(RoleFromContext(r.Context()), perm) {
				forbid(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAny enforces that the role has at least one of the permissions.
func RequireAny(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !Default.AllowsAny(RoleFromContext(r.Context()), perms...) {
				forbid(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAccess guards a route whose path names the owning user, e.g.
// /tests/{testId}/progress/{userId}. ownerOf extracts that user.
func RequireAccess(ownPerm, allPerm string, ownerOf func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !CanAccess(r.Context(), ownerOf(r), ownPerm, allPerm) {
				forbid(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
