package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/pos-checkout/pkg/tracing"
)

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// ErrBrokerUnavailable is returned while the breaker is open.
var ErrBrokerUnavailable = errors.New("outbox: broker unavailable")

type Dispatcher struct {
	log      *slog.Logger
	producer Producer
	topic    string
	breaker  *gobreaker.CircuitBreaker[struct{}]
	tracer   trace.Tracer
}

func NewDispatcher(log *slog.Logger, producer Producer, topic string) *Dispatcher {
	st := gobreaker.Settings{
		Name:        "outbox-" + topic,
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("outbox breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &Dispatcher{
		log:      log,
		producer: producer,
		topic:    topic,
		breaker:  gobreaker.NewCircuitBreaker[struct{}](st),
		tracer:   otel.Tracer("outbox"),
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, event Event) error {
	ctx = tracing.ContextWithTraceparent(ctx, event.Traceparent)
	ctx, span := d.tracer.Start(ctx, "outbox.dispatch", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.destination.name", d.topic),
		attribute.String("event.type", event.Type),
		attribute.Int64("outbox.id", event.ID),
	)

	headers := make([]kafka.Header, 0, len(event.Headers)+2)
	for k, v := range event.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	headers = append(headers, kafka.Header{Key: "event_type", Value: []byte(event.Type)})
	headers = tracing.InjectKafkaHeaders(ctx, headers)

	msg := kafka.Message{
		Topic:   d.topic,
		Key:     []byte(event.AggregateID),
		Value:   event.Payload,
		Headers: headers,
	}

	_, err := d.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, d.producer.WriteMessages(ctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		span.SetStatus(codes.Error, "breaker open")
		return ErrBrokerUnavailable
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.log.Error("outbox dispatch failed", "event_id", event.ID, "err", err)
		return err
	}
	d.log.Info("outbox dispatched", "event_id", event.ID, "type", event.Type)
	return nil
}
