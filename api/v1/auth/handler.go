package auth

import (
	"time"

	"agentmesh/api/v1/middleware"
	"agentmesh/internal/httpx"

	"github.com/gin-gonic/gin"
)

// SessionResponse describes a valid session token
type SessionResponse struct {
	AgentDID     string   `json:"agent_did"`
	Tier         string   `json:"tier"`
	TrustScore   int      `json:"trust_score"`
	Capabilities []string `json:"capabilities"`
	Issuer       string   `json:"issuer"`
	ExpireAt     string   `json:"expireAt"`
}

// SessionHandler echoes the claims of the caller's Bearer session token.
// Mount behind middleware.SessionRequired.
func SessionHandler(c *gin.Context) {
	claims := middleware.CurrentSession(c)
	if claims == nil {
		httpx.FailErr(c, httpx.ErrUnauthorized("missing session"))
		return
	}
	resp := SessionResponse{
		AgentDID:     claims.DID,
		Tier:         claims.Tier,
		TrustScore:   claims.TrustScore,
		Capabilities: claims.Capabilities,
		Issuer:       claims.Issuer,
	}
	if claims.ExpiresAt != nil {
		resp.ExpireAt = claims.ExpiresAt.Time.UTC().Format(time.RFC3339)
	}
	httpx.OK(c, resp)
}
