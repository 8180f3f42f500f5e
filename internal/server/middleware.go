package server

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/tempora-hq/tempora/internal/tenantctx"
	"go.uber.org/zap"
)

// TenantContext resolves the acting tenant from the X-Tenant-ID header,
// falling back to the configured default for single-firm deployments.
func (s *Server) TenantContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := snowflake.ID(s.cfg.DefaultTenantID)
		if raw := c.GetHeader("X-Tenant-ID"); raw != "" {
			parsed, err := snowflake.ParseString(raw)
			if err != nil {
				AbortWithError(c, newValidationError("tenant_id", "invalid_tenant_id", "malformed tenant id"))
				return
			}
			tenantID = parsed
		}

		ctx := tenantctx.WithTenantID(c.Request.Context(), tenantID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http.access")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
