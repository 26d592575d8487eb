package tracing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/posbridge/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return recorder
}

func spanAttr(attrs []attribute.KeyValue, key string) (string, bool) {
	for _, attr := range attrs {
		if string(attr.Key) == key {
			return attr.Value.Emit(), true
		}
	}
	return "", false
}

func TestGinMiddlewareTagsTransactionRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := recordSpans(t)

	var seenTrxNo, seenBaggage string
	router := gin.New()
	router.Use(GinMiddleware())
	router.GET("/admin/transactions/:trxNo", func(c *gin.Context) {
		seenTrxNo = obscontext.TrxNoFromContext(c.Request.Context())
		seenBaggage = baggage.FromContext(c.Request.Context()).Member("trx_no").Value()
		c.Status(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/transactions/SW04W2401000501", nil))

	assert.Equal(t, "SW04W2401000501", seenTrxNo)
	assert.Equal(t, "SW04W2401000501", seenBaggage)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "posbridge.http.GET /admin/transactions/:trxNo", spans[0].Name())
	trxNo, ok := spanAttr(spans[0].Attributes(), "trx_no")
	require.True(t, ok)
	assert.Equal(t, "SW04W2401000501", trxNo)
	status, _ := spanAttr(spans[0].Attributes(), "http.status_code")
	assert.Equal(t, "204", status)
}

func TestGinMiddlewareMarksServerErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := recordSpans(t)

	router := gin.New()
	router.Use(GinMiddleware())
	router.POST("/admin/inventory/sync", func(c *gin.Context) {
		_ = c.Error(assert.AnError)
		c.Status(http.StatusBadGateway)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/inventory/sync", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Len(t, spans[0].Events(), 1)
	_, ok := spanAttr(spans[0].Attributes(), "trx_no")
	assert.False(t, ok)
}

func TestGinMiddlewareNamesUnmatchedRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := recordSpans(t)

	router := gin.New()
	router.Use(GinMiddleware())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "posbridge.http.GET unmatched", spans[0].Name())
}
