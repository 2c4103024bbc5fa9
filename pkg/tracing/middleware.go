package tracing

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "payments-http"

// HTTPMiddleware opens a server span per request, honoring any trace
// context the caller propagated. Provider webhooks arrive without one,
// so those requests start fresh traces.
func HTTPMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer(tracerName)

	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(
			c.Request.Context(),
			propagation.HeaderCarrier(c.Request.Header),
		)

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		ctx, span := tracer.Start(ctx, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.target", c.Request.URL.Path),
				attribute.String("http.route", route),
				attribute.String("http.user_agent", c.Request.UserAgent()),
				attribute.String("net.host.name", c.Request.Host),
				attribute.String("net.peer.ip", c.ClientIP()),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)

		// Trace ID on the response for correlation with provider dashboards.
		sc := span.SpanContext()
		if sc.HasTraceID() {
			c.Header("X-Trace-ID", sc.TraceID().String())
		}
		c.Set("trace_id", sc.TraceID().String())
		c.Set("span_id", sc.SpanID().String())

		c.Next()

		finishSpan(span, c)
	}
}

// finishSpan stamps the response outcome onto the span once the
// handler chain has run.
func finishSpan(span trace.Span, c *gin.Context) {
	status := c.Writer.Status()
	span.SetAttributes(
		attribute.Int("http.status_code", status),
		attribute.Int("http.response.size", c.Writer.Size()),
	)

	switch {
	case len(c.Errors) > 0:
		span.RecordError(c.Errors.Last())
		span.SetStatus(codes.Error, c.Errors.Last().Error())
	case status >= 400:
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
	default:
		span.SetStatus(codes.Ok, "")
	}
}

// AddSpanAttributes tags the active span. Without a configured tracer
// provider the span is a noop and the call does nothing.
func AddSpanAttributes(c *gin.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(c.Request.Context()).SetAttributes(attrs...)
}

// RecordError marks the active span failed with err.
func RecordError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(c.Request.Context())
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
