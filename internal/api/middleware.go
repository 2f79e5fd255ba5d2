package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// requestLogger binds a request-scoped zerolog logger into the gin
// request's context (so handlers can call zerolog.Ctx(ctx.Request.Context()))
// and emits one structured line per request, the way the lifecycle and
// pool controllers log driver operations.
func requestLogger() gin.HandlerFunc {
	base := zerolog.DefaultContextLogger
	if base == nil {
		nop := zerolog.Nop()
		base = &nop
	}
	return func(c *gin.Context) {
		start := time.Now()
		logger := base.With().Str("path", c.FullPath()).Str("method", c.Request.Method).Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))

		c.Next()

		logger.Info().
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request handled")
	}
}
