package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/adsightlabs/adsight-core/internal/config"
	"github.com/adsightlabs/adsight-core/internal/http/handler"
	httpmiddleware "github.com/adsightlabs/adsight-core/internal/http/middleware"
	"github.com/adsightlabs/adsight-core/internal/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, connectHandler *handler.ConnectHandler, rateLimiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	connect := r.Group("/connect")
	{
		connect.GET("/:platform/start", connectHandler.Start)
		connect.GET("/:platform/callback", connectHandler.Callback)
	}

	r.DELETE("/accounts/:id/connection", connectHandler.Disconnect)
	r.POST("/collect/run", connectHandler.Collect)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
