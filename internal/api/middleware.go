package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"brigade/internal/config"
	"brigade/internal/metrics"
)

const (
	tenantKey = "tenant"
	loggerKey = "logger"
)

// TenantMiddleware resolves the request's tenant from the registry: an
// explicit X-Tenant-ID header wins, then the Host header mapping. The
// resolved tenant is stored on the context; handlers fail the request
// themselves when no tenant resolves, so routes can differ in how they
// report it.
func TenantMiddleware(registry *config.TenantRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := c.GetHeader("X-Tenant-ID"); id != "" {
			if tenant, ok := registry.ResolveID(id); ok {
				c.Set(tenantKey, tenant)
				c.Next()
				return
			}
			metrics.TenantMissingTotal.Inc()
			c.Next()
			return
		}
		if tenant, ok := registry.ResolveHost(c.Request.Host); ok {
			c.Set(tenantKey, tenant)
		} else {
			metrics.TenantMissingTotal.Inc()
		}
		c.Next()
	}
}

// tenantFrom returns the resolved tenant, if any
func tenantFrom(c *gin.Context) (config.Tenant, bool) {
	v, ok := c.Get(tenantKey)
	if !ok {
		return config.Tenant{}, false
	}
	tenant, ok := v.(config.Tenant)
	return tenant, ok
}

// LoggerMiddleware attaches a request-scoped zap logger and logs each
// completed request
func LoggerMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)

		reqLog := log.With(zap.String("request_id", requestID))
		c.Set(loggerKey, reqLog)

		c.Next()

		reqLog.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()))
	}
}

// loggerFrom returns the request-scoped logger, falling back to the global
func loggerFrom(c *gin.Context) *zap.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if log, ok := v.(*zap.Logger); ok {
			return log
		}
	}
	return zap.L()
}

// MetricsMiddleware records request counts and latencies
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.ObserveRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), start)
	}
}
