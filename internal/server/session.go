package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/zombor/receipt-keeper/internal/auth"
)

type sessionKey struct{}

type session struct {
	token  string
	claims *auth.SessionClaims
}

// requireSession rejects requests without a valid bearer token and puts
// the session on the request context.
func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="receipt-keeper"`)
			writeError(w, r, auth.ErrInvalidToken)
			return
		}
		token = strings.TrimSpace(token)

		claims, err := s.Sessions.Validate(token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="receipt-keeper", error="invalid_token"`)
			writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey{}, &session{token: token, claims: claims})
		next(w, r.WithContext(ctx))
	}
}

func sessionFrom(ctx context.Context) *session {
	sess, _ := ctx.Value(sessionKey{}).(*session)
	return sess
}

// owner is the signed-in user's email.
func owner(r *http.Request) string {
	return sessionFrom(r.Context()).claims.Email
}
