package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/kgbridge-backend/internal/pkg/ctxutil"
	"github.com/yungbote/kgbridge-backend/internal/platform/logger"
)

func RequestLog(log *logger.Logger) gin.HandlerFunc {
	reqLog := log.With("component", "HTTP")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		reqLog.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed_ms", time.Since(start).Milliseconds(),
			"request_id", ctxutil.RequestID(c.Request.Context()),
		)
	}
}
