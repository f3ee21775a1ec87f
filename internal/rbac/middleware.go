package rbac

import (
	"log/slog"
	"net/http"

	"github.com/SiroccoBreeze/pony-knows-sub001/internal/perm"
	"github.com/SiroccoBreeze/pony-knows-sub001/internal/platform/httpx"
	"github.com/SiroccoBreeze/pony-knows-sub001/internal/shared"
)

// Middleware wires authorization guards for HTTP handlers. Decisions are
// always server-authoritative: the session only identifies the principal,
// grants come from storage via the service.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireAny ensures the current user holds at least one of the required
// permissions. The super token satisfies every guard.
func (m Middleware) RequireAny(tokens ...perm.Token) func(http.Handler) http.Handler {
	return m.require(tokens, func(set perm.Set) bool {
		return set.HasAny(tokens...)
	})
}

// RequireAll ensures the current user holds every required permission.
func (m Middleware) RequireAll(tokens ...perm.Token) func(http.Handler) http.Handler {
	return m.require(tokens, func(set perm.Set) bool {
		return set.HasAll(tokens...)
	})
}

// RequireSuper ensures the current user holds the super token.
func (m Middleware) RequireSuper() func(http.Handler) http.Handler {
	return m.require([]perm.Token{perm.Super}, func(set perm.Set) bool {
		return set.Has(perm.Super)
	})
}

func (m Middleware) require(tokens []perm.Token, allowed func(perm.Set) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(tokens) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			userID, ok := shared.CurrentUserID(r.Context())
			if !ok {
				// No identity is never the same as no requirement.
				httpx.RespondError(w, shared.ErrUnauthenticated)
				return
			}
			set, err := m.Service.EffectivePermissions(r.Context(), userID)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac permission resolution", slog.Int64("user_id", userID), slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			if !allowed(set) {
				m.respondForbidden(w, userID, tokens)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// respondForbidden names the requirement that failed for diagnostics but
// stays generic otherwise; the catalog is never enumerated to the client.
func (m Middleware) respondForbidden(w http.ResponseWriter, userID int64, tokens []perm.Token) {
	required := make([]string, len(tokens))
	for i, t := range tokens {
		required[i] = string(t)
	}
	if m.Logger != nil {
		m.Logger.Warn("rbac denied", slog.Int64("user_id", userID), slog.Any("required", required))
	}
	httpx.ProblemWith(w, http.StatusForbidden, "Forbidden", "insufficient permission", map[string]any{
		"required": required,
	})
}
