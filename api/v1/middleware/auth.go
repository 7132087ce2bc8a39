package middleware

import (
	"context"
	"errors"
	"strings"

	"agentmesh/internal/auth"
	"agentmesh/internal/httpx"
	"agentmesh/internal/model"

	"github.com/gin-gonic/gin"
)

// Context keys set by the auth middlewares
const (
	SessionKey = "session"
	AgentKey   = "agent"
)

// AdminRequired checks X-Admin-Token against a bcrypt hash. With no hash
// configured the admin API is closed.
func AdminRequired(tokenHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenHash == "" {
			httpx.AbortErr(c, httpx.ErrForbidden("admin API is disabled"))
			return
		}
		token := c.GetHeader("X-Admin-Token")
		if token == "" {
			httpx.AbortErr(c, httpx.ErrUnauthorized("missing X-Admin-Token header"))
			return
		}
		if err := auth.CompareToken(tokenHash, token); err != nil {
			httpx.AbortErr(c, httpx.ErrInvalidToken("invalid admin token"))
			return
		}
		c.Next()
	}
}

// SessionRequired validates a Bearer session token issued by a handshake
func SessionRequired(sessions *auth.SessionIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httpx.AbortErr(c, httpx.ErrUnauthorized("missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httpx.AbortErr(c, httpx.ErrUnauthorized("invalid authorization header format"))
			return
		}

		claims, err := sessions.Parse(parts[1])
		if err != nil {
			if errors.Is(err, auth.ErrExpired) {
				httpx.AbortErr(c, httpx.ErrTokenExpired("session token expired"))
			} else {
				httpx.AbortErr(c, httpx.ErrInvalidToken("invalid session token"))
			}
			return
		}

		c.Set(SessionKey, claims)
		c.Next()
	}
}

// APIKeyAuthenticator resolves an agent API key.
type APIKeyAuthenticator interface {
	AuthenticateAPIKey(ctx context.Context, key string) (*model.Agent, error)
}

// APIKeyRequired authenticates the agent behind X-API-Key
func APIKeyRequired(a APIKeyAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		agent, err := a.AuthenticateAPIKey(c.Request.Context(), c.GetHeader("X-API-Key"))
		if err != nil {
			httpx.AbortErr(c, httpx.AsAppError(err))
			return
		}
		c.Set(AgentKey, agent)
		c.Next()
	}
}

// CurrentAgent returns the agent set by APIKeyRequired.
func CurrentAgent(c *gin.Context) *model.Agent {
	if v, ok := c.Get(AgentKey); ok {
		if a, ok := v.(*model.Agent); ok {
			return a
		}
	}
	return nil
}

// CurrentSession returns the claims set by SessionRequired.
func CurrentSession(c *gin.Context) *auth.SessionClaims {
	if v, ok := c.Get(SessionKey); ok {
		if claims, ok := v.(*auth.SessionClaims); ok {
			return claims
		}
	}
	return nil
}
