package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/odyssey-erp/ams/internal/platform/httpx"
	"github.com/odyssey-erp/ams/internal/shared"
)

// Verifier turns a raw bearer token into a principal.
type Verifier interface {
	Verify(raw string) (shared.Principal, error)
}

// Middleware authenticates requests carrying an Authorization bearer token.
func Middleware(v Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			scheme, token, found := strings.Cut(header, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				httpx.RespondError(w, shared.ErrUnauthorized)
				return
			}
			principal, err := v.Verify(token)
			if err != nil {
				if logger != nil {
					logger.Debug("bearer rejected", slog.Any("error", err))
				}
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
		})
	}
}
