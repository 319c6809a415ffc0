// Package server is the HTTP surface of the gateway: the JSON-RPC agent
// endpoint, the REST x402 endpoints, discovery and introspection routes and
// the MCP bridge. Handlers hold no state beyond the engine and config they
// are constructed with.
package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agentmesh/x402-gateway/internal/a2a"
	"github.com/agentmesh/x402-gateway/internal/config"
	"github.com/agentmesh/x402-gateway/internal/engine"
)

// Server binds the engine to HTTP routes.
type Server struct {
	cfg       *config.Config
	engine    *engine.Engine
	log       *slog.Logger
	startedAt time.Time
}

// New builds a server around a running engine.
func New(cfg *config.Config, eng *engine.Engine, log *slog.Logger, startedAt time.Time) *Server {
	return &Server{cfg: cfg, engine: eng, log: log, startedAt: startedAt}
}

// Router assembles the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	r.POST("/", s.handleRPC)
	r.POST("/a2a", s.handleRPC)

	r.GET("/.well-known/agent-card.json", s.handleAgentCard)
	r.GET("/x402", s.handleCatalogue)
	r.GET("/a2a-x402-compat", s.handleCompat)
	r.GET("/a2a-x402-test", s.handleSelfTest)
	r.GET("/stats", s.handleStats)
	r.GET("/health", s.handleHealth)

	// bazaar and chains live under the same segment as the skill routes, so
	// the param handler dispatches them itself; gin refuses mixed static and
	// param children at one level.
	r.GET("/x402/:skill", s.handleX402Get)
	r.POST("/x402/:skill", s.handleX402Post)

	s.mountMCP(r)
	return r
}

// corsMiddleware applies the permissive CORS policy and short-circuits
// preflight requests with 204.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Payment, X-Payment-Response, Payment-Signature, Payment-Required, X-A2A-Extensions, X-API-Key")
		h.Set("Access-Control-Expose-Headers", "X-Payment-Response, Payment-Response, Payment-Required, X-A2A-Extensions")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// echoExtensions implements extension activation: the response names the
// protocol revision the client asked for, defaulting to v0.2.
func echoExtensions(c *gin.Context) {
	requested := c.GetHeader("X-A2A-Extensions")
	uri := a2a.ExtensionURIV02
	if strings.Contains(requested, a2a.ExtensionURIV01) {
		uri = a2a.ExtensionURIV01
	}
	c.Header("X-A2A-Extensions", uri)
}
