package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

const sessionContextKey contextKey = "session"

// SessionClaims are the JWT claims issued to dashboard sessions. OrgID
// scopes every API call to one tenant.
type SessionClaims struct {
	OrgID string `json:"org_id"`
	jwt.RegisteredClaims
}

// SessionFromContext extracts the verified session claims from the request
// context. Returns nil for unauthenticated requests.
func SessionFromContext(ctx context.Context) *SessionClaims {
	claims, _ := ctx.Value(sessionContextKey).(*SessionClaims)
	return claims
}

// BearerAuth returns a middleware that verifies HS256 session JWTs on
// API endpoints. Requests without a valid token get a 401 JSON body.
func BearerAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				unauthorized(w, "missing bearer token")
				return
			}

			claims := &SessionClaims{}
			parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return secret, nil
			})
			if err != nil || !parsed.Valid {
				log.Debug().Err(err).Msg("Rejected bearer token")
				unauthorized(w, "invalid bearer token")
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   message,
	})
}
