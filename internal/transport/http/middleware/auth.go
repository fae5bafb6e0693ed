package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"geojungle/internal/httputil"
	"geojungle/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	UserIDKey contextKey = "user_id"
	RoleKey   contextKey = "role"
)

type claimsResult struct {
	userID int64
	role   string
}

// tokenFromRequest checks the Authorization header first, then the
// access_token cookie used by the dashboard.
func tokenFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie, err := r.Cookie("access_token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

func parseToken(tokenString, jwtSecret string) (*claimsResult, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	userIDFloat, ok := claims["user_id"].(float64)
	if !ok || userIDFloat <= 0 {
		return nil, jwt.ErrTokenInvalidClaims
	}
	role, _ := claims["role"].(string)
	if role == "" {
		role = model.RoleUser
	}
	return &claimsResult{userID: int64(userIDFloat), role: role}, nil
}

func withClaims(ctx context.Context, c *claimsResult) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, c.userID)
	return context.WithValue(ctx, RoleKey, c.role)
}

// AuthMiddleware rejects requests without a valid access token.
func AuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := tokenFromRequest(r)
			if tokenString == "" {
				httputil.WriteUnauthorized(w, "Missing authentication token")
				return
			}

			claims, err := parseToken(tokenString, jwtSecret)
			if err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					httputil.WriteUnauthorizedWithCode(w, model.CodeTokenExpired, "Access token has expired")
					return
				}
				httputil.WriteUnauthorizedWithCode(w, model.CodeTokenInvalid, "Invalid authentication token")
				return
			}

			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// OptionalAuthMiddleware attaches the identity when a valid token is sent
// and otherwise lets the request through anonymously.
func OptionalAuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenString := tokenFromRequest(r); tokenString != "" {
				if claims, err := parseToken(tokenString, jwtSecret); err == nil {
					r = r.WithContext(withClaims(r.Context(), claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole must run after AuthMiddleware.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetRoleFromContext(r.Context())
			if !ok {
				httputil.WriteUnauthorized(w, "Authentication required")
				return
			}
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			httputil.WriteForbidden(w, "Insufficient role")
		})
	}
}

// GetUserIDFromContext returns the user ID and true if the request is
// authenticated.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	return userID, ok
}

func GetRoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(RoleKey).(string)
	return role, ok
}

// ActorFromContext bundles identity and role for permission checks.
func ActorFromContext(ctx context.Context) (model.Actor, bool) {
	userID, ok := GetUserIDFromContext(ctx)
	if !ok {
		return model.Actor{}, false
	}
	role, _ := GetRoleFromContext(ctx)
	return model.Actor{UserID: userID, Role: role}, true
}
