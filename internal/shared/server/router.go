package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"resumeflow-backend/internal/shared/auth"
	"resumeflow-backend/internal/shared/config"
	"resumeflow-backend/internal/shared/metrics"
	"resumeflow-backend/internal/shared/server/middleware"
	"resumeflow-backend/internal/shared/server/respond"
)

// RouteRegistrar registers a handler's routes on the authenticated API group.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// RouterDeps carries everything NewRouter needs to assemble the engine.
type RouterDeps struct {
	Config   config.Config
	Log      *zap.Logger
	Verifier *auth.Verifier
	Handlers []RouteRegistrar
}

// NewRouter constructs the Gin engine with middleware and routes registered.
// Health and metrics stay outside the auth group.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(deps.Log),
		middleware.Recovery(deps.Log),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.Use(middleware.Auth(deps.Verifier))
	for _, h := range deps.Handlers {
		h.RegisterRoutes(api)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
