package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Domenick1991/hotelbooking/internal/domain"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type EventType string

const (
	EventBookingCreated       EventType = "booking_created"
	EventBookingConfirmed     EventType = "booking_confirmed"
	EventBookingCancelled     EventType = "booking_cancelled"
	EventBookingStatusUpdated EventType = "booking_status_updated"
)

// BookingEvent carries a full snapshot so consumers can rebuild mirrors
// without reading the primary file.
type BookingEvent struct {
	EventID    string               `json:"eventId"`
	Type       EventType            `json:"type"`
	BookingID  string               `json:"bookingId"`
	Status     domain.BookingStatus `json:"status"`
	OccurredAt time.Time            `json:"occurredAt"`
	Booking    domain.Booking       `json:"booking"`
}

func NewBookingEvent(t EventType, b domain.Booking, now time.Time) BookingEvent {
	return BookingEvent{
		EventID:    uuid.NewString(),
		Type:       t,
		BookingID:  b.ID.String(),
		Status:     b.Status,
		OccurredAt: now,
		Booking:    b,
	}
}

func DecodeBookingEvent(data []byte) (BookingEvent, error) {
	var event BookingEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return BookingEvent{}, fmt.Errorf("decode booking event: %w", err)
	}
	if event.Booking.ID.Empty() {
		event.Booking.ID = domain.NewBookingID(event.BookingID)
	}
	return event, nil
}

type Producer struct {
	brokers []string
	writer  *kafka.Writer
	logger  *zap.Logger
}

func NewProducer(brokers []string, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	return &Producer{
		brokers: brokers,
		writer:  writer,
		logger:  logger,
	}
}

func (p *Producer) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	message := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	p.logger.Debug("published to kafka", zap.String("topic", topic), zap.String("key", key))
	return nil
}

func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

// CheckConnection dials the first broker and lists partitions.
func (p *Producer) CheckConnection(ctx context.Context) error {
	if len(p.brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}
	conn, err := kafka.DialContext(ctx, "tcp", p.brokers[0])
	if err != nil {
		return fmt.Errorf("failed to connect to Kafka: %w", err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions()
	if err != nil {
		return fmt.Errorf("failed to read partitions: %w", err)
	}

	p.logger.Info("connected to kafka", zap.Int("partitions", len(partitions)))
	return nil
}
