package tracing

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/posbridge/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const trxNoParam = "trxNo"

// GinMiddleware opens a server span per admin request. Routes keyed by a
// POS transaction number carry it as span attribute, baggage and context
// value so the sync and record handlers log against the same trx_no.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("posbridge/http")
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "posbridge.http."+c.Request.Method, trace.WithSpanKind(trace.SpanKindServer))

		members := map[string]string{"request_id": obscontext.RequestIDFromContext(ctx)}
		if trxNo := c.Param(trxNoParam); trxNo != "" {
			ctx = obscontext.WithTrxNo(ctx, trxNo)
			members["trx_no"] = trxNo
		}
		ctx = withBaggage(ctx, members)
		for key, value := range members {
			if value != "" {
				span.SetAttributes(attribute.String(key, value))
			}
		}

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		span.SetName("posbridge.http." + c.Request.Method + " " + route)
		span.SetAttributes(SafeAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
			attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
		)...)

		if status >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		span.End()
	}
}

func withBaggage(ctx context.Context, values map[string]string) context.Context {
	bag := baggage.FromContext(ctx)
	for key, value := range values {
		if value == "" {
			continue
		}
		member, err := baggage.NewMember(key, value)
		if err != nil {
			continue
		}
		if next, err := bag.SetMember(member); err == nil {
			bag = next
		}
	}
	return baggage.ContextWithBaggage(ctx, bag)
}
