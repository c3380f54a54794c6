package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/301redirect/redirector/internal/models"
)

// RedirectResolver resolves an inbound host to its redirect record.
type RedirectResolver interface {
	Resolve(ctx context.Context, host string) (*models.Redirect, error)
}

// SetupRoutes installs the redirect handler for every method and path.
// Vanity domains can be requested with any path, so no route is registered:
// everything falls through to NoRoute and only the Host header is consulted.
func SetupRoutes(router *gin.Engine, resolver RedirectResolver, notFoundStatus int) {
	router.HandleMethodNotAllowed = false
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	router.NoRoute(RedirectHandler(resolver, notFoundStatus))
}

// RedirectHandler answers 301 with the record's URL as Location, or notFoundStatus
// (404, or 200 in lenient mode) with an empty body. Resolution failures never
// surface as server errors.
func RedirectHandler(resolver RedirectResolver, notFoundStatus int) gin.HandlerFunc {
	return func(c *gin.Context) {
		redirect, err := resolver.Resolve(c.Request.Context(), c.Request.Host)
		if err != nil {
			// AbortWithStatus flushes the header so gin does not append its default 404 body
			c.AbortWithStatus(notFoundStatus)
			return
		}

		c.Header("Location", redirect.URL)
		c.AbortWithStatus(http.StatusMovedPermanently)
	}
}

// RequestLogger logs one line per request with zap.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("host", c.Request.Host),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.String("location", c.Writer.Header().Get("Location")),
			zap.String("client_ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)))
	}
}

// NewRouter builds the gin engine used by the redirect server.
func NewRouter(resolver RedirectResolver, notFoundStatus int, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))
	SetupRoutes(router, resolver, notFoundStatus)
	return router
}
