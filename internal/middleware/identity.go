package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/nbsync/sync-server-go/internal/model"
)

type contextKey string

const IdentityContextKey contextKey = "identity"

// Headers set by the external auth layer, which resolves identity once and
// hands the engine a verified {user_id, role} pair.
const (
	UserIDHeader = "X-User-Id"
	RoleHeader   = "X-User-Role"
)

func GetIdentity(ctx context.Context) *model.Identity {
	if identity, ok := ctx.Value(IdentityContextKey).(*model.Identity); ok {
		return identity
	}
	return nil
}

type IdentityMiddleware struct{}

func NewIdentityMiddleware() *IdentityMiddleware {
	return &IdentityMiddleware{}
}

func (m *IdentityMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(UserIDHeader)
		if userID == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing user identity",
			})
			return
		}

		role := model.Role(r.Header.Get(RoleHeader))
		if !role.Valid() {
			log.Warn().Str("role", string(role)).Msg("identity middleware: unknown role")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Unknown role",
			})
			return
		}

		identity := &model.Identity{UserID: userID, Role: role}
		ctx := context.WithValue(r.Context(), IdentityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
