package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("outcome", "confirmed"),
		attribute.String("trx_no", "SW04W2401000123"),
		attribute.String("bucket", "updated"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("outcome"), attrs[0].Key)
	assert.Equal(t, attribute.Key("bucket"), attrs[1].Key)
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.RecordOrderSynced(context.Background(), "confirmed")
	m.RecordPOSCall(context.Background(), "login", "ok")

	m, err := New(Config{}, noop.NewMeterProvider())
	require.NoError(t, err)
	m.RecordWebhookReceived(context.Background(), "orders/create")
	m.RecordInventoryPush(context.Background(), "updated")
}
