package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lukemcguire/backlinkwatch/logger"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	// APIToken protects /api routes with bearer auth when non-empty.
	APIToken string
	// Metrics is served at /metrics when non-nil.
	Metrics http.Handler
}

// NewRouter wires every route. /health and /metrics stay public.
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(h.log))

	router.GET("/health", h.Health)
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	protected := router.Group("/api", BearerAuth(cfg.APIToken))

	protected.GET("/stats", h.Stats)
	protected.GET("/export", h.Export)
	protected.GET("/template", h.Template)
	protected.GET("/reports/excel", h.ExcelReport)

	protected.POST("/upload", h.Upload)
	protected.POST("/check-links", h.CheckLinks)
	protected.POST("/test-link", h.TestLink)

	protected.GET("/backlinks", h.ListBacklinks)
	protected.POST("/backlinks", h.CreateBacklink)
	protected.GET("/backlinks/ids", h.ListIDs)
	protected.POST("/backlinks/bulk-delete", h.BulkDelete)
	protected.DELETE("/backlinks/delete-all", h.DeleteAll)
	protected.GET("/backlinks/:id", h.GetBacklink)
	protected.DELETE("/backlinks/:id", h.DeleteBacklink)

	return router
}

// BearerAuth rejects requests whose Authorization header does not carry
// "Bearer <token>". An empty token disables the check.
func BearerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		scheme, presented, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}

// RequestLogger logs one line per request.
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("latency", time.Since(start)),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Warn("request completed", fields...)
			return
		}
		log.Debug("request completed", fields...)
	}
}
