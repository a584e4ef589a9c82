// Package kafka holds the writer the outbox relay publishes order events with.
package kafka

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// NewWriter builds a writer without a fixed topic; the outbox dispatcher
// sets the topic on every message.
func NewWriter(log *slog.Logger, brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			log.Error("kafka writer", "msg", fmt.Sprintf(msg, args...))
		}),
	}
}
