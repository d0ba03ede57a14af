// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// UserIDKey is the context key for the token subject.
	UserIDKey ContextKey = "user_id"
	// ClaimsKey is the context key for the verified claims.
	ClaimsKey ContextKey = "claims"
)

// Claims represents JWT claims.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

const bearerPrefix = "Bearer "

// Auth creates JWT bearer authentication middleware. The secret is read on
// every request so a server started without one answers 500 instead of
// accepting tokens.
func Auth(jwtSecret func() string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok || tokenString == "" {
				writeJSONError(w, http.StatusUnauthorized, "Missing token")
				return
			}

			secret := jwtSecret()
			if secret == "" {
				writeJSONError(w, http.StatusInternalServerError, "Server misconfigured (JWT_SECRET missing)")
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})

			if err != nil || !token.Valid {
				writeJSONError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.Subject)
			ctx = context.WithValue(ctx, ClaimsKey, claims)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// StaticSecret adapts a fixed secret for Auth.
func StaticSecret(secret string) func() string {
	return func() string { return secret }
}

// GetUserID gets user ID from context.
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(UserIDKey).(string); ok {
		return v
	}
	return ""
}

// GetClaims gets the verified claims from context.
func GetClaims(ctx context.Context) *Claims {
	if v, ok := ctx.Value(ClaimsKey).(*Claims); ok {
		return v
	}
	return nil
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
