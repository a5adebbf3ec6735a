package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type authClaimsKey struct{}

// AuthClaims holds the caller's identity extracted from the JWT.
type AuthClaims struct {
	OrgID uuid.UUID
	Actor string
}

// authFromContext returns the auth claims stored in ctx, or nil.
func authFromContext(ctx context.Context) *AuthClaims {
	v, _ := ctx.Value(authClaimsKey{}).(*AuthClaims)
	return v
}

// orgFromContext returns the authenticated organization, or uuid.Nil.
func orgFromContext(ctx context.Context) uuid.UUID {
	if c := authFromContext(ctx); c != nil {
		return c.OrgID
	}
	return uuid.Nil
}

// actorFromContext returns the authenticated subject recorded on stock moves.
func actorFromContext(ctx context.Context) string {
	if c := authFromContext(ctx); c != nil {
		return c.Actor
	}
	return ""
}

// jwtClaims is the JWT payload struct used for signing and parsing. The
// subject claim names the acting user.
type jwtClaims struct {
	OrgID string `json:"org_id"`
	jwt.RegisteredClaims
}

// SignToken issues an HS256 token for org and actor. Used by operators and
// tests; the service itself never logs anyone in.
func SignToken(secret string, org uuid.UUID, actor string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &jwtClaims{
		OrgID: org.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// RequireAuth is chi middleware that validates the bearer token and injects
// AuthClaims into the request context. Returns 401 if the token is absent or invalid.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			writeError(w, r, "authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		claims := &jwtClaims{}
		token, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return h.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			writeError(w, r, "invalid or expired token", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}
		org, err := uuid.Parse(claims.OrgID)
		if err != nil || org == uuid.Nil {
			writeError(w, r, "token carries no organization", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), authClaimsKey{}, &AuthClaims{
			OrgID: org,
			Actor: claims.Subject,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
