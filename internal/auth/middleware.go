package auth

import (
	"encoding/json"
	"net/http"

	"github.com/ariefcatur/go-shop-services/internal/logger"
	"go.uber.org/zap"
)

// Authenticate verifies the bearer token and attaches the resolved principal
// to the request context. Requests without a valid token never reach the
// handler.
func Authenticate(v *Verifier, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := BearerToken(r.Header.Get("Authorization"))
			if err != nil {
				deny(w, http.StatusUnauthorized, "unauthenticated", err.Error())
				return
			}
			claims, err := v.Verify(raw)
			if err != nil {
				logger.FromContext(r.Context(), log).Info("token rejected", zap.Error(err))
				deny(w, http.StatusUnauthorized, "unauthenticated", ErrInvalidToken.Error())
				return
			}
			p := Resolve(claims, raw)
			logger.FromContext(r.Context(), log).Debug("authenticated",
				zap.String("user", p.Username),
				zap.Strings("authorities", p.AuthorityList()),
			)
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireAny rejects callers holding none of roles as realm roles. Must run
// after Authenticate.
func RequireAny(roles ...string) func(http.Handler) http.Handler {
	return require(func(p Principal) bool { return p.HasAnyRole(roles...) })
}

// RequireAnyOrScope is RequireAny that also accepts SCOPE_<role>.
func RequireAnyOrScope(roles ...string) func(http.Handler) http.Handler {
	return require(func(p Principal) bool { return p.HasAnyRoleOrScope(roles...) })
}

func require(allowed func(Principal) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := FromContext(r.Context())
			if !ok {
				deny(w, http.StatusUnauthorized, "unauthenticated", ErrMissingToken.Error())
				return
			}
			if !allowed(p) {
				deny(w, http.StatusForbidden, "forbidden", "access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func deny(w http.ResponseWriter, code int, errCode, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": errCode})
}
