package rbac

import (
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/ams/internal/platform/httpx"
	"github.com/odyssey-erp/ams/internal/shared"
)

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
}

// Require ensures the current principal may perform action.
func (m Middleware) Require(action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, shared.ErrUnauthorized)
				return
			}
			role, _ := ParseRole(p.Role)
			if !May(role, action) {
				if m.Logger != nil {
					m.Logger.Warn("rbac denied",
						slog.Int64("user_id", p.UserID),
						slog.String("role", p.Role),
						slog.String("action", string(action)))
				}
				httpx.RespondError(w, shared.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Allowed reports whether the principal in the request context may perform action.
func Allowed(r *http.Request, action Action) bool {
	p, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		return false
	}
	role, _ := ParseRole(p.Role)
	return May(role, action)
}
