package tracing

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceparentRoundTrip(t *testing.T) {
	ctx := context.Background()
	tp, err := Init(ctx, "pos-test", "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer func() { _ = tp.Shutdown(ctx) }()

	ctx, span := tp.Tracer("test").Start(ctx, "checkout")
	defer span.End()

	tp1 := Traceparent(ctx)
	require.NotEmpty(t, tp1)

	restored := ContextWithTraceparent(context.Background(), tp1)
	assert.Equal(t, span.SpanContext().TraceID(), trace.SpanContextFromContext(restored).TraceID())
}

func TestTraceparent_NoSpan(t *testing.T) {
	assert.Empty(t, Traceparent(context.Background()))
	ctx := context.Background()
	assert.Equal(t, ctx, ContextWithTraceparent(ctx, ""))
}

func TestKafkaHeaders(t *testing.T) {
	ctx := context.Background()
	tp, err := Init(ctx, "pos-test", "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer func() { _ = tp.Shutdown(ctx) }()

	ctx, span := tp.Tracer("test").Start(ctx, "dispatch")
	defer span.End()

	headers := InjectKafkaHeaders(ctx, []kafka.Header{{Key: "event_type", Value: []byte("OrderRecorded")}})
	require.Len(t, headers, 2)
	assert.Equal(t, TraceparentHeader, headers[1].Key)
	assert.Equal(t, Traceparent(ctx), string(headers[1].Value))
}
