package authz

import (
	"net/http"

	"github.com/openforge/forge-api/internal/models"
)

// RequireRole gates a route on the caller's role tier. Roles come from the
// JWT claims the auth middleware stashed on the request context; a request
// with no identity at all is rejected the same as an underprivileged one.
func RequireRole(required models.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			roles, ok := RolesFromRequest(r)
			if !ok || !models.HasAtLeast(roles, required) {
				http.Error(w, string(required)+" role required", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRoleHandler wraps a single handler, for routes registered without a
// subrouter. Used for the per-project notifications kill switch, which sits
// on the shared /api tree but is admin-only.
func RequireRoleHandler(required models.UserRole, next http.Handler) http.Handler {
	return RequireRole(required)(next)
}
