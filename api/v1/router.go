package v1

import (
	"net/http"
	"time"

	"agentmesh/api/v1/admin"
	"agentmesh/api/v1/agents"
	authapi "agentmesh/api/v1/auth"
	"agentmesh/api/v1/middleware"
	"agentmesh/internal/auth"
	"agentmesh/internal/httpx"
	"agentmesh/internal/logging"
	"agentmesh/internal/registry"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Version is reported by the index endpoint
const Version = "1.0.0"

// Deps is everything the HTTP surface needs
type Deps struct {
	Registry         *registry.Service
	Sessions         *auth.SessionIssuer
	AdminTokenHash   string
	HandshakeLimiter *middleware.IPRateLimiter
	// Live serves /socket.io/; nil leaves the feed unmounted
	Live   http.Handler
	Logger *logrus.Entry
}

// NewEngine builds a gin engine with the global middleware and all routes
func NewEngine(d *Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.AccessLog(d.Logger))
	r.NoRoute(func(c *gin.Context) {
		httpx.FailErr(c, httpx.ErrNotFound("route not found"))
	})
	r.NoMethod(func(c *gin.Context) {
		httpx.Fail(c, http.StatusMethodNotAllowed, httpx.CodeInvalidField, "method not allowed")
	})
	SetupRouter(r, d)
	return r
}

// SetupRouter sets up the API v1 routes
func SetupRouter(r *gin.Engine, d *Deps) {
	agentsHandler := agents.NewHandler(d.Registry)
	adminHandler := admin.NewHandler(d.Registry)

	v1 := r.Group("/api/v1")
	{
		// Public routes
		v1.GET("/", indexHandler(d.Registry))
		v1.GET("/ping", indexHandler(d.Registry))

		v1.POST("/register", agentsHandler.Register)
		v1.GET("/verify", agentsHandler.Verify)
		v1.GET("/verify/:did", agentsHandler.Verify)
		v1.POST("/handshake", middleware.RateLimit(d.HandshakeLimiter), agentsHandler.Handshake)
		v1.GET("/challenge", agentsHandler.Challenge)
		v1.GET("/score", agentsHandler.Score)
		v1.GET("/score/:did", agentsHandler.Score)
		v1.GET("/audit", agentsHandler.Audit)
		v1.GET("/audit/:did", agentsHandler.Audit)

		// Session token holders
		v1.GET("/session", middleware.SessionRequired(d.Sessions), authapi.SessionHandler)

		// Agent self-service
		me := v1.Group("/agents/me")
		me.Use(middleware.APIKeyRequired(d.Registry))
		{
			me.GET("", agentsHandler.Me)
			me.POST("/public-key", agentsHandler.RotateKey)
		}

		// Operators
		adminGroup := v1.Group("/admin")
		adminGroup.Use(middleware.AdminRequired(d.AdminTokenHash))
		{
			adminGroup.POST("/events", adminHandler.RecordEvent)
			adminGroup.POST("/status", adminHandler.SetStatus)
			adminGroup.GET("/stats", adminHandler.Stats)
		}
	}

	if d.Live != nil {
		r.Any("/socket.io/*any", gin.WrapH(d.Live))
	}
}

// indexHandler reports health, counters and the registry public key
func indexHandler(svc *registry.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := svc.Stats(c.Request.Context())
		if err != nil {
			httpx.FailErr(c, httpx.AsAppError(err))
			return
		}
		httpx.OK(c, gin.H{
			"name":                "AgentMesh API",
			"version":             Version,
			"description":         "Trust verification for AI agents",
			"status":              "healthy",
			"timestamp":           time.Now().UTC().Format(time.RFC3339),
			"registry_public_key": svc.PublicKey(),
			"stats":               stats,
			"endpoints": gin.H{
				"register":  "POST /api/v1/register",
				"verify":    "GET /api/v1/verify/:did",
				"handshake": "POST /api/v1/handshake",
				"challenge": "GET /api/v1/challenge?did=",
				"score":     "GET /api/v1/score/:did",
				"audit":     "GET /api/v1/audit/:did",
				"session":   "GET /api/v1/session",
			},
		})
	}
}
