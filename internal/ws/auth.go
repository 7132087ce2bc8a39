package ws

import (
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"agentmesh/internal/auth"
)

// extractToken reads the admin token from the handshake request.
// Priority: token query parameter, X-Admin-Token, Authorization: Bearer.
func extractToken(r *http.Request) string {
	// io(url, { query: { token } }) arrives as ?token=
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if token := r.Header.Get("X-Admin-Token"); token != "" {
		return token
	}
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}
	return ""
}

// WrapWithAuth rejects Socket.IO handshakes whose token does not match the
// bcrypt tokenHash. An empty tokenHash disables the feed entirely.
func WrapWithAuth(next http.Handler, tokenHash string, logger *logrus.Entry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tokenHash == "" {
			http.Error(w, "Live feed disabled", http.StatusServiceUnavailable)
			return
		}
		token := extractToken(r)
		if token == "" {
			logger.WithField("remote", r.RemoteAddr).Warn("Socket handshake rejected: no token")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if err := auth.CompareToken(tokenHash, token); err != nil {
			logger.WithField("remote", r.RemoteAddr).Warn("Socket handshake rejected: invalid token")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
