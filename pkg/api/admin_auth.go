package api

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AdminClaims are the claims expected on an admin bearer token.
type AdminClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// AdminAuth validates a bearer JWT against an HS256 shared secret. Modeled
// on the teacher's auth.NewMiddleware fail-closed rule: an empty Secret
// means authentication is unconfigured and every request is rejected,
// rather than silently admitting unauthenticated admin traffic.
type AdminAuth struct {
	Secret string
}

func (a *AdminAuth) validate(tokenStr string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return []byte(a.Secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	return claims, nil
}

// Middleware wraps next, requiring a valid bearer token. If Secret is
// unset, every request is rejected with 501 (not implemented) so operators
// get a clear "you forgot to configure this" signal distinct from a normal
// auth failure.
func (a *AdminAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := CorrelationID(r.Context())

		if a.Secret == "" {
			WriteError(w, requestID, http.StatusNotImplemented, ErrInternal, "admin authentication not configured", nil)
			return
		}

		authHeader := r.Header.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			WriteSignatureInvalid(w, requestID, "missing or malformed Authorization header")
			return
		}

		if _, err := a.validate(parts[1]); err != nil {
			WriteSignatureInvalid(w, requestID, "invalid or expired admin token")
			return
		}

		next.ServeHTTP(w, r)
	})
}
