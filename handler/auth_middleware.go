package handler

import (
	"context"
	"net"
	"net/http"
	"strings"

	"bookstore-api/common"
	"bookstore-api/config"
	"bookstore-api/model"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	UserIDKey   contextKey = "userID"
	UserRoleKey contextKey = "userRole"
)

// AuthMiddleware verifies access tokens. The access secret is injected so the
// middleware never reaches into global configuration.
type AuthMiddleware struct {
	jwtCfg config.JWTConfig
}

func NewAuthMiddleware(jwtCfg config.JWTConfig) *AuthMiddleware {
	return &AuthMiddleware{jwtCfg: jwtCfg}
}

// parseBearerToken extracts and validates the access token from the
// Authorization header. It returns nil claims when the header is absent.
func (m *AuthMiddleware) parseBearerToken(r *http.Request) (*model.AppClaims, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, nil
	}

	headerParts := strings.Split(authHeader, " ")
	if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" {
		return nil, jwt.ErrTokenMalformed
	}

	claims := &model.AppClaims{}
	token, err := jwt.ParseWithClaims(headerParts[1], claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(m.jwtCfg.AccessSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}
	return claims, nil
}

// Authenticate rejects requests without a valid access token and stores the
// caller's identity in the request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.parseBearerToken(r)
		if err != nil {
			appErr := common.NewAppError(http.StatusUnauthorized, "Invalid or expired token", err)
			appErr.Send(w)
			return
		}
		if claims == nil {
			appErr := common.NewAppError(http.StatusUnauthorized, "Authorization header is required", nil)
			appErr.Send(w)
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
		ctx = context.WithValue(ctx, UserRoleKey, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Optional resolves an identity when a valid token is present but lets the
// request through as anonymous otherwise. Route policy decides what an
// anonymous caller may see.
func (m *AuthMiddleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.parseBearerToken(r)
		if err == nil && claims != nil {
			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, UserRoleKey, claims.Role)
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// AdminMiddleware requires the authenticated caller to hold the admin role.
func AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, ok := r.Context().Value(UserRoleKey).(string)

		if !ok || role != string(model.RoleAdmin) {
			err := common.NewAppError(http.StatusForbidden, "Access denied. Admin privileges required.", nil)
			err.Send(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP returns the requester's address for refresh-token issuance
// metadata, preferring X-Forwarded-For when present.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.Index(forwarded, ","); idx != -1 {
			return strings.TrimSpace(forwarded[:idx])
		}
		return strings.TrimSpace(forwarded)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
