package router

import (
	"net/http"
	"os"

	"calma/backend/internal/api"
	"calma/backend/internal/ws"
	"calma/backend/pkg/di"
	"calma/backend/pkg/errors"
	"calma/backend/pkg/logger"
	"calma/backend/pkg/middleware"
	"calma/backend/pkg/validator"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger

	limiter *middleware.RateLimiter
}

// New creates a new router with the given container and registers every
// route.
func New(container *di.Container) (*Router, error) {
	cfg := container.Config
	log := container.Logger

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Use the logger middleware first to capture all requests
	engine.Use(logger.Middleware(log))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())
	engine.Use(middleware.CORS(cfg.Security.AllowedOrigins))
	engine.Use(maxBody(cfg.Security.MaxBodySize))

	limits := middleware.DefaultRateLimiterOptions()
	limits.Limit = rate.Limit(cfg.Security.RateLimit)
	limits.Burst = cfg.Security.RateLimitBurst
	limiter := middleware.NewRateLimiter(log, limits)

	r := &Router{Engine: engine, Container: container, Logger: log, limiter: limiter}

	v1 := engine.Group("/api/v1")
	v1.Use(limiter.Middleware())
	if cfg.Features.EnableOpenAPIValidation {
		v, err := validator.New(api.OpenAPIDocument)
		if err != nil {
			return nil, err
		}
		v1.Use(v.Middleware())
		log.Info("OpenAPI validation enabled")
	}
	r.setupRoutes(v1)
	return r, nil
}

func (r *Router) setupRoutes(v1 *gin.RouterGroup) {
	c := r.Container

	api.NewProfileHandler(c.Profiles, c.Companion, c.Catalog, c.DailyCache).RegisterRoutes(v1)
	api.NewAssistantHandler(c.Profiles, c.Companion).RegisterRoutes(v1)
	api.NewGamesHandler(c.Games).RegisterRoutes(v1)
	api.NewArtHandler(c.Studio).RegisterRoutes(v1)

	health := api.NewHealthHandler(c.Health, c.Hub.Count, os.Getenv("APP_VERSION"))
	health.RegisterHealthRoutes(r.Engine)

	r.Engine.GET("/api/openapi.yaml", func(ctx *gin.Context) {
		ctx.Data(http.StatusOK, "application/yaml", api.OpenAPIDocument)
	})
	r.Engine.GET("/metrics", gin.WrapH(c.MetricsHandler))

	r.Engine.GET("/ws/voice", func(ctx *gin.Context) {
		ws.ServeWs(c.Hub, ctx)
	})
}

// Close stops background work owned by the router.
func (r *Router) Close() {
	r.limiter.Close()
}

// maxBody caps request bodies; image uploads are the largest payloads.
func maxBody(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
