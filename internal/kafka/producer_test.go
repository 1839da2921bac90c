package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Domenick1991/hotelbooking/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBookingEvent_RoundTripKeepsSnapshot(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	paymentID := "PAY-1"
	b := domain.Booking{ID: "1700000000000", GuestName: "Ann", Status: domain.BookingStatusConfirmed, PaymentID: &paymentID}

	event := NewBookingEvent(EventBookingConfirmed, b, now)
	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "1700000000000", event.BookingID)

	data, err := json.Marshal(event)
	require.NoError(t, err)

	decoded, err := DecodeBookingEvent(data)
	require.NoError(t, err)
	assert.Equal(t, EventBookingConfirmed, decoded.Type)
	assert.Equal(t, "PAY-1", *decoded.Booking.PaymentID)
	assert.True(t, now.Equal(decoded.OccurredAt))
}

func TestDecodeBookingEvent_FillsIDFromKeyField(t *testing.T) {
	decoded, err := DecodeBookingEvent([]byte(`{"type":"booking_created","bookingId":"42","booking":{"guestName":"Bob"}}`))
	require.NoError(t, err)
	assert.Equal(t, domain.BookingID("42"), decoded.Booking.ID)
}

func TestDecodeBookingEvent_Invalid(t *testing.T) {
	_, err := DecodeBookingEvent([]byte(`not json`))
	assert.Error(t, err)
}

func TestProducer_CheckConnectionWithoutBrokers(t *testing.T) {
	p := NewProducer(nil, nil)
	defer p.Close()

	assert.Error(t, p.CheckConnection(context.Background()))
}

func TestDispatch_SkipsBadMessages(t *testing.T) {
	var seen []BookingEvent
	handle := func(_ context.Context, e BookingEvent) error {
		seen = append(seen, e)
		return nil
	}

	require.NoError(t, dispatch(context.Background(), kafka.Message{Value: []byte(`{`)}, handle, zap.NewNop()))
	require.NoError(t, dispatch(context.Background(), kafka.Message{Value: []byte(`{"type":"booking_created"}`)}, handle, zap.NewNop()))
	assert.Empty(t, seen)

	require.NoError(t, dispatch(context.Background(), kafka.Message{Value: []byte(`{"type":"booking_cancelled","bookingId":"9"}`)}, handle, zap.NewNop()))
	require.Len(t, seen, 1)
	assert.Equal(t, domain.BookingID("9"), seen[0].Booking.ID)
}

func TestDispatch_PropagatesHandlerError(t *testing.T) {
	boom := errors.New("mirror down")
	err := dispatch(context.Background(), kafka.Message{Value: []byte(`{"bookingId":"9"}`)}, func(context.Context, BookingEvent) error {
		return boom
	}, zap.NewNop())
	assert.ErrorIs(t, err, boom)
}

func TestProducer_CheckConnectionUnreachableBroker(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:1"}, nil)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.Error(t, p.CheckConnection(ctx))
}
