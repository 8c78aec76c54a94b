package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gpstunnel/gpstunnel/internal/api/models"
	"github.com/gpstunnel/gpstunnel/internal/auth"
)

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

type claimsKey struct{}

// RequireRole authenticates the bearer token and rejects tokens that do
// not grant role with 403.
func RequireRole(validator TokenValidator, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeAuthProblem(w, r, http.StatusUnauthorized, "missing or malformed bearer token")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				detail := "invalid access token"
				if errors.Is(err, auth.ErrTokenExpired) {
					detail = "access token has expired"
				}
				writeAuthProblem(w, r, http.StatusUnauthorized, detail)
				return
			}

			if !claims.HasRole(role) {
				writeAuthProblem(w, r, http.StatusForbidden, "token does not grant the "+role+" role")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from a case-insensitive "Bearer" scheme.
func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// writeAuthProblem is kept here rather than in the response package,
// which imports middleware.
func writeAuthProblem(w http.ResponseWriter, r *http.Request, code int, detail string) {
	traceID := GetRequestID(r.Context())
	var problem *models.Problem
	if code == http.StatusForbidden {
		problem = models.NewForbidden(traceID, detail)
	} else {
		w.Header().Set("WWW-Authenticate", `Bearer realm="gpstunnel-admin"`)
		problem = models.NewUnauthorized(traceID, detail)
	}
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// GetClaims returns the authenticated token claims, or nil.
func GetClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims
}

// GetSubject returns the authenticated subject, or "".
func GetSubject(ctx context.Context) string {
	if claims := GetClaims(ctx); claims != nil {
		return claims.Subject
	}
	return ""
}
