package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const patientClaimsKey contextKey = "patientClaims"

// PatientClaims identifies the logged-in patient. The subject is the patient id.
type PatientClaims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
}

// PatientJWT reads an optional HMAC-signed patient token. Requests without
// a token pass through anonymously unless required is set; a token that is
// present but invalid is always rejected. An empty secret disables the check.
func PatientJWT(secret string, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if auth == "" {
				if required {
					http.Error(w, "missing authorization header", http.StatusUnauthorized)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			if !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, "malformed authorization header", http.StatusUnauthorized)
				return
			}

			claims := PatientClaims{}
			token, err := jwt.ParseWithClaims(strings.TrimPrefix(auth, "Bearer "), &claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid || strings.TrimSpace(claims.Subject) == "" {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), patientClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PatientClaimsFromContext returns patient JWT claims if present.
func PatientClaimsFromContext(ctx context.Context) (PatientClaims, bool) {
	claims, ok := ctx.Value(patientClaimsKey).(PatientClaims)
	return claims, ok
}

// PatientIDFromContext returns the patient id, or "" for anonymous requests.
func PatientIDFromContext(ctx context.Context) string {
	claims, ok := PatientClaimsFromContext(ctx)
	if !ok {
		return ""
	}
	return claims.Subject
}
