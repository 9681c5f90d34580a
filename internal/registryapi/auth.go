package registryapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/skillnest/registry/internal/devauth"
	"github.com/skillnest/registry/internal/store"
)

type contextKey string

const accessorKey contextKey = "registryapi_accessor"

// AccessorFromContext extracts the resolved Accessor, or an anonymous one if
// the request carried no (or an invalid) bearer token.
func AccessorFromContext(ctx context.Context) store.Accessor {
	if a, ok := ctx.Value(accessorKey).(store.Accessor); ok {
		return a
	}
	return store.Accessor{}
}

// OptionalAuth parses a Bearer access token if present and attaches the
// resulting Accessor to the request context. Absent or invalid tokens are
// treated as anonymous rather than rejected — individual handlers decide
// whether anonymity is acceptable for their resource.
func OptionalAuth(issuer *devauth.TokenIssuer, perms *store.PermissionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accessor := store.Accessor{}

			if raw, ok := bearerToken(r); ok {
				if claims, err := issuer.ValidateAccessToken(raw); err == nil {
					if userID, err := uuid.Parse(claims.Subject); err == nil {
						orgIDs, err := perms.OrgIDsForUser(r.Context(), userID)
						if err == nil {
							accessor = store.Accessor{UserID: &userID, OrgIDs: orgIDs, Scopes: claims.Scopes}
						}
					}
				}
			}

			ctx := context.WithValue(r.Context(), accessorKey, accessor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}
