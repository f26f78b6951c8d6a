package apihttp

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type authContextKey struct{}

type authClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type authIdentity struct {
	UserID int64
	Role   string
}

// roleLevel orders roles by privilege. Unknown roles rank below viewer and
// are denied everywhere.
func roleLevel(role string) int {
	switch role {
	case "admin":
		return 3
	case "supervisor":
		return 2
	case "viewer":
		return 1
	default:
		return 0
	}
}

// requiredRole maps a request to the minimum role allowed to perform it.
// Reads are open to viewers, writes need a supervisor, destructive
// configuration changes need an admin.
func requiredRole(method, path string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return "viewer"
	case http.MethodDelete:
		return "admin"
	}
	if strings.HasPrefix(path, "/events/") && strings.HasSuffix(path, "/acknowledge") {
		return "viewer"
	}
	return "supervisor"
}

// authMiddleware validates a Bearer HS256 token and enforces the role table.
// An empty secret disables authentication entirely; /metrics, /healthz and
// /ws are always open so scrapers and dashboards keep working.
func authMiddleware(secret string, next http.Handler) http.Handler {
	if secret == "" {
		return next
	}
	key := []byte(secret)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		if p == "/metrics" || p == "/healthz" || p == "/ws" || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

		claims := &authClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return key, nil
		})
		if err != nil || !token.Valid {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		if roleLevel(claims.Role) < roleLevel(requiredRole(r.Method, p)) {
			writeError(w, http.StatusForbidden, "forbidden", "insufficient role")
			return
		}

		identity := authIdentity{Role: claims.Role}
		if id, err := strconv.ParseInt(claims.Subject, 10, 64); err == nil {
			identity.UserID = id
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), authContextKey{}, identity)))
	})
}

// identityFromContext returns the authenticated identity, if any.
func identityFromContext(ctx context.Context) (authIdentity, bool) {
	identity, ok := ctx.Value(authContextKey{}).(authIdentity)
	return identity, ok
}
