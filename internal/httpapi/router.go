package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/insanalamin/mechaway/pkg/logger"
)

// New builds the gin engine mounting the health check, workflow management
// API, and dynamic webhook dispatcher.
func New(workflows *WorkflowAPI, webhooks *WebhookAPI, log logger.Logger) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(log))

	engine.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	api := engine.Group("/api")
	workflows.RegisterWorkflowRoutes(api)

	webhooks.RegisterWebhookRoutes(engine)

	return engine
}

func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.Debug("request handled",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
		)
	}
}
