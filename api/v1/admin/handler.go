package admin

import (
	"agentmesh/internal/httpx"
	"agentmesh/internal/registry"

	"github.com/gin-gonic/gin"
)

// Handler serves operator endpoints; mount behind middleware.AdminRequired
type Handler struct {
	svc *registry.Service
}

// NewHandler creates a new admin handler
func NewHandler(svc *registry.Service) *Handler {
	return &Handler{svc: svc}
}

// RecordEvent applies a reported trust event to an agent's score
// POST /api/v1/admin/events
func (h *Handler) RecordEvent(c *gin.Context) {
	var req registry.EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrInvalidField("invalid request body"))
		return
	}
	res, err := h.svc.RecordEvent(c.Request.Context(), &req)
	if err != nil {
		httpx.FailErr(c, httpx.AsAppError(err))
		return
	}
	httpx.OK(c, res)
}

// SetStatus activates, suspends or revokes an agent
// POST /api/v1/admin/status
func (h *Handler) SetStatus(c *gin.Context) {
	var req registry.StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrInvalidField("invalid request body"))
		return
	}
	res, err := h.svc.SetStatus(c.Request.Context(), &req)
	if err != nil {
		httpx.FailErr(c, httpx.AsAppError(err))
		return
	}
	httpx.OK(c, res)
}

// Stats returns the global counters
// GET /api/v1/admin/stats
func (h *Handler) Stats(c *gin.Context) {
	st, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		httpx.FailErr(c, httpx.AsAppError(err))
		return
	}
	httpx.OK(c, st)
}
