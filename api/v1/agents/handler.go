package agents

import (
	"strings"

	"agentmesh/api/v1/middleware"
	"agentmesh/internal/httpx"
	"agentmesh/internal/identity"
	"agentmesh/internal/registry"

	"github.com/gin-gonic/gin"
)

// Handler serves the agent-facing registry endpoints
type Handler struct {
	svc *registry.Service
}

// NewHandler creates a new agents handler
func NewHandler(svc *registry.Service) *Handler {
	return &Handler{svc: svc}
}

// didParam takes the DID from the path, falling back to ?did=
func didParam(c *gin.Context) string {
	if did := c.Param("did"); did != "" {
		return did
	}
	return c.Query("did")
}

func fail(c *gin.Context, err error) {
	httpx.FailErr(c, httpx.AsAppError(err))
}

// Register creates a new agent identity
// POST /api/v1/register
func (h *Handler) Register(c *gin.Context) {
	var req registry.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrInvalidField("invalid request body"))
		return
	}
	resp, err := h.svc.Register(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	httpx.Created(c, resp)
}

// Verify returns the public registration record of an agent
// GET /api/v1/verify/:did
func (h *Handler) Verify(c *gin.Context) {
	did := didParam(c)
	if did == "" {
		httpx.FailErr(c, httpx.ErrMissingField("did is required"))
		return
	}
	resp, err := h.svc.Lookup(c.Request.Context(), did)
	if err != nil {
		fail(c, err)
		return
	}
	httpx.OK(c, resp)
}

// Handshake runs one challenge/response verification
// POST /api/v1/handshake
func (h *Handler) Handshake(c *gin.Context) {
	var req registry.HandshakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrInvalidField("invalid request body"))
		return
	}
	res, err := h.svc.Handshake(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	httpx.OK(c, res)
}

// Challenge issues a fresh nonce for the next handshake
// GET /api/v1/challenge?did=
func (h *Handler) Challenge(c *gin.Context) {
	did := didParam(c)
	if did == "" {
		httpx.FailErr(c, httpx.ErrMissingField("did is required"))
		return
	}
	resp, err := h.svc.IssueChallenge(c.Request.Context(), did)
	if err != nil {
		fail(c, err)
		return
	}
	httpx.OK(c, resp)
}

// Score returns the trust score breakdown
// GET /api/v1/score/:did
func (h *Handler) Score(c *gin.Context) {
	did := didParam(c)
	if did == "" {
		httpx.FailErr(c, httpx.ErrMissingField("did is required"))
		return
	}
	resp, err := h.svc.Score(c.Request.Context(), did)
	if err != nil {
		fail(c, err)
		return
	}
	httpx.OK(c, resp)
}

// Audit returns the newest audit entries; ?verify=1 also checks the chain
// GET /api/v1/audit/:did
func (h *Handler) Audit(c *gin.Context) {
	did := didParam(c)
	if did == "" {
		httpx.FailErr(c, httpx.ErrMissingField("did is required"))
		return
	}
	verify := false
	switch strings.ToLower(c.Query("verify")) {
	case "1", "true", "yes":
		verify = true
	}
	resp, err := h.svc.Audit(c.Request.Context(), did, verify)
	if err != nil {
		fail(c, err)
		return
	}
	httpx.OK(c, resp)
}

// Me returns the caller's own record
// GET /api/v1/agents/me
func (h *Handler) Me(c *gin.Context) {
	agent := middleware.CurrentAgent(c)
	if agent == nil {
		httpx.FailErr(c, httpx.ErrUnauthorized("missing agent credentials"))
		return
	}
	resp, err := h.svc.Lookup(c.Request.Context(), agent.DID)
	if err != nil {
		fail(c, err)
		return
	}
	httpx.OK(c, resp)
}

// RotateKey binds a new public key to the caller
// POST /api/v1/agents/me/public-key
func (h *Handler) RotateKey(c *gin.Context) {
	agent := middleware.CurrentAgent(c)
	if agent == nil {
		httpx.FailErr(c, httpx.ErrUnauthorized("missing agent credentials"))
		return
	}
	var msg identity.SignedMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		httpx.FailErr(c, httpx.ErrInvalidField("invalid request body"))
		return
	}
	resp, err := h.svc.RotatePublicKey(c.Request.Context(), agent.DID, &msg)
	if err != nil {
		fail(c, err)
		return
	}
	httpx.OKMsg(c, "public key rotated", resp)
}
