package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

// Authorizer decides whether a request may use the administrative routes.
type Authorizer interface {
	Authorize(r *http.Request) error
}

// TokenAuthorizer accepts requests carrying a shared bearer token.
type TokenAuthorizer struct {
	token []byte
}

// NewTokenAuthorizer creates an authorizer for token. An empty token
// rejects every request.
func NewTokenAuthorizer(token string) TokenAuthorizer {
	return TokenAuthorizer{token: []byte(token)}
}

// Authorize checks the Authorization header in constant time.
func (a TokenAuthorizer) Authorize(r *http.Request) error {
	if len(a.token) == 0 {
		return ErrAdminDisabled
	}
	scheme, presented, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(presented)), a.token) != 1 {
		return ErrUnauthorized
	}
	return nil
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch err := s.auth.Authorize(r); {
		case err == nil:
			next.ServeHTTP(w, r)
		case errors.Is(err, ErrAdminDisabled):
			writeError(w, http.StatusForbidden, "admin_disabled", err)
		default:
			w.Header().Set("WWW-Authenticate", `Bearer realm="cigame"`)
			writeError(w, http.StatusUnauthorized, "unauthorized", err)
		}
	})
}
