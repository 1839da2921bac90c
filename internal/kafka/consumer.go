package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// BookingEventHandler receives one decoded event. Returning an error stops
// consumption.
type BookingEventHandler func(ctx context.Context, event BookingEvent) error

// BookingEventConsumer reads booking snapshots published by the API.
type BookingEventConsumer struct {
	reader *kafka.Reader
	logger *zap.Logger
}

func NewBookingEventConsumer(brokers []string, groupID, topic string, logger *zap.Logger) *BookingEventConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingEventConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           brokers,
			GroupID:           groupID,
			Topic:             topic,
			MinBytes:          1,
			MaxBytes:          1 << 20,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    30 * time.Second,
		}),
		logger: logger,
	}
}

func (c *BookingEventConsumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// Run reads until ctx is done or the handler fails. Messages that do not
// decode are logged and skipped.
func (c *BookingEventConsumer) Run(ctx context.Context, handle BookingEventHandler) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			return err
		}
		if err := dispatch(ctx, msg, handle, c.logger); err != nil {
			return err
		}
	}
}

func dispatch(ctx context.Context, msg kafka.Message, handle BookingEventHandler, logger *zap.Logger) error {
	event, err := DecodeBookingEvent(msg.Value)
	if err != nil {
		logger.Warn("skip undecodable booking event",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
		return nil
	}
	if event.Booking.ID.Empty() {
		logger.Warn("skip booking event without id", zap.String("event_id", event.EventID))
		return nil
	}
	return handle(ctx, event)
}
