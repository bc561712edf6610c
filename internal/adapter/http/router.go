package http

import (
	"log/slog"
	"net/http"

	"github.com/aq2208/gcart-api/internal/adapter/http/middleware"
	"github.com/aq2208/gcart-api/internal/logging"
	"github.com/aq2208/gcart-api/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServiceInfo struct {
	Name    string
	Version string
}

type RouterDeps struct {
	Info      ServiceInfo
	Tools     *ToolHandler
	Webhook   *WebhookHandler // nil disables /webhook
	Token     *TokenHandler
	Authz     *middleware.Authz
	Signature *middleware.WebhookSignature
	Metrics   *middleware.HTTPMetrics // nil skips request metrics
	Logger    *slog.Logger
}

func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if d.Metrics != nil {
		r.Use(d.Metrics.Handler())
	}

	l := d.Logger
	if l == nil {
		l = logging.New("http")
	}
	r.Use(middleware.Logging(l))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/health", func(c *gin.Context) {
		logging.From(c).Debug("health check")
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": d.Info.Name})
	})
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": d.Info.Name,
			"version": d.Info.Version,
			"status":  "running",
			"endpoints": gin.H{
				"tools":   "/v1/tools",
				"webhook": "/webhook",
				"health":  "/health",
				"metrics": "/metrics",
			},
		})
	})
	// Prometheus endpoint (scraped by Prometheus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/v1/token", d.Token.IssueToken)

	if d.Webhook != nil {
		r.GET("/webhook", d.Webhook.Verify)
		r.POST("/webhook", d.Signature.Verify(), d.Webhook.Receive)
	}

	read := d.Authz.Require(security.PermCartRead)
	write := d.Authz.Require(security.PermCartWrite)

	v1 := r.Group("/v1")
	{
		v1.GET("/tools", read, d.Tools.ListTools)
		v1.POST("/sessions", write, d.Tools.OpenSession)
		v1.DELETE("/sessions/:id", write, d.Tools.CloseSession)
		v1.POST("/sessions/:id/tools/:name", write, d.Tools.CallTool)
		v1.GET("/sessions/:id/calls", read, d.Tools.ListCalls)
		v1.GET("/sessions/:id/summary", read, d.Tools.Summary)
	}

	return r
}
