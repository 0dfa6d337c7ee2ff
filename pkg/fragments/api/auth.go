package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/go-chi/jwtauth"
)

type contextKey string

// OwnerIDKey holds the hashed owner id of an authenticated request
const OwnerIDKey contextKey = "owner_id"

// HashOwner derives a stable, non-reversible owner id from an email or subject.
func HashOwner(identity string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(identity))))
	return hex.EncodeToString(sum[:])
}

// OwnerFromContext returns the owner id set by OwnerMiddleware.
func OwnerFromContext(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(OwnerIDKey).(string)
	return owner, ok && owner != ""
}

// OwnerMiddleware reads the verified JWT claims and stores the hashed
// owner id in the request context. It must run after jwtauth.Verifier.
func OwnerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		identity, _ := claims["email"].(string)
		if identity == "" {
			identity, _ = claims["sub"].(string)
		}
		if identity == "" {
			writeError(w, r, http.StatusUnauthorized, "token has no email or sub claim")
			return
		}

		ctx := context.WithValue(r.Context(), OwnerIDKey, HashOwner(identity))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authenticate returns the middleware chain guarding fragment routes.
func Authenticate(ja *jwtauth.JWTAuth) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		jwtauth.Verifier(ja),
		jwtauth.Authenticator,
		OwnerMiddleware,
	}
}
