package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go/ext"

	"github.com/prodiguer/hermes/internal/tracing"
)

// TracingMiddleware creates a new span for each request
func TracingMiddleware(agent string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(
			c.Request.Context(),
			c.Request.Method+" "+c.FullPath(),
			c.Request.Header,
		)
		defer span.Finish()

		tracing.TagComponentRest(span)
		tracing.TagAgent(span, agent)

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		span.LogKV("http.status", c.Writer.Status())
		if c.Writer.Status() >= 500 {
			ext.Error.Set(span, true)
		}
	}
}
