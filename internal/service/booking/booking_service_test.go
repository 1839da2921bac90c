package booking

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Domenick1991/hotelbooking/internal/domain"
	"github.com/Domenick1991/hotelbooking/internal/kafka"
	"github.com/Domenick1991/hotelbooking/internal/repository"
	"github.com/Domenick1991/hotelbooking/internal/service/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendConfirmation(ctx context.Context, b domain.Booking) notification.Outcome {
	args := m.Called(ctx, b)
	return args.Get(0).(notification.Outcome)
}

func (m *MockNotifier) SendCancellation(ctx context.Context, b domain.Booking, reason string) notification.Outcome {
	args := m.Called(ctx, b, reason)
	return args.Get(0).(notification.Outcome)
}

func (m *MockNotifier) SendBill(ctx context.Context, b domain.Booking, billURL string) notification.Outcome {
	args := m.Called(ctx, b, billURL)
	return args.Get(0).(notification.Outcome)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) AcquireBookingLock(ctx context.Context, id domain.BookingID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockLocker) ReleaseBookingLock(ctx context.Context, id domain.BookingID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type panickingNotifier struct{}

func (panickingNotifier) SendConfirmation(context.Context, domain.Booking) notification.Outcome {
	panic("smtp exploded")
}

func (panickingNotifier) SendCancellation(context.Context, domain.Booking, string) notification.Outcome {
	panic("smtp exploded")
}

func (panickingNotifier) SendBill(context.Context, domain.Booking, string) notification.Outcome {
	panic("smtp exploded")
}

var fixedNow = time.Date(2025, 5, 20, 9, 30, 0, 0, time.UTC)

func newStore(t *testing.T) (*repository.RecordStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bookings.json")
	repo, err := repository.NewFileBookingRepository(path)
	require.NoError(t, err)
	return repository.NewRecordStore(repo), path
}

func amount(v float64) *domain.Amount {
	a := domain.Amount(v)
	return &a
}

func validInput() CreateBookingInput {
	return CreateBookingInput{
		HotelID:        "3",
		HotelName:      "Sea View",
		GuestName:      "Ann Lee",
		Email:          "ann@example.com",
		Phone:          "+100000",
		NumberOfGuests: 2,
		CheckIn:        "2025-06-01",
		CheckOut:       "2025-06-03",
		TotalAmount:    amount(460),
		MealPackage:    "breakfast",
	}
}

func newService(t *testing.T, notifier Notifier, opts ...BookingServiceOption) (*BookingService, string) {
	store, path := newStore(t)
	opts = append([]BookingServiceOption{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewBookingService(store, notifier, opts...), path
}

func createBooking(t *testing.T, s *BookingService) domain.Booking {
	t.Helper()
	res, err := s.CreateBooking(context.Background(), validInput())
	require.NoError(t, err)
	return res.Booking
}

func TestBookingService_CreateBooking_Success(t *testing.T) {
	producer := &MockProducer{}
	producer.On("Publish", mock.Anything, "booking-events", mock.Anything, mock.MatchedBy(func(e kafka.BookingEvent) bool {
		return e.Type == kafka.EventBookingCreated && e.Status == domain.BookingStatusPending
	})).Return(nil).Once()

	s, _ := newService(t, &MockNotifier{}, WithProducer(producer, "booking-events"))
	res, err := s.CreateBooking(context.Background(), validInput())
	require.NoError(t, err)

	assert.NotEmpty(t, res.Booking.ID)
	assert.Equal(t, domain.BookingStatusPending, res.Booking.Status)
	assert.Nil(t, res.Booking.PaymentID)
	assert.Equal(t, domain.MealPackageBreakfast, res.Booking.MealPackage)
	assert.Equal(t, fixedNow, res.Booking.CreatedAt)
	assert.Equal(t, "/process-payment?bookingId="+res.Booking.ID.String()+"&amount=460", res.PaymentURL)

	stored, err := s.GetBooking(context.Background(), res.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann Lee", stored.GuestName)
	producer.AssertExpectations(t)
}

func TestBookingService_CreateBooking_UniqueIDs(t *testing.T) {
	s, _ := newService(t, &MockNotifier{})

	first := createBooking(t, s)
	second := createBooking(t, s)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestBookingService_CreateBooking_Validation(t *testing.T) {
	price := 100.0
	testCases := []struct {
		name   string
		mutate func(in *CreateBookingInput)
		msg    string
	}{
		{name: "missing guest", mutate: func(in *CreateBookingInput) { in.GuestName = "" }, msg: "guestName is required"},
		{name: "bad email", mutate: func(in *CreateBookingInput) { in.Email = "not-an-email" }, msg: "email must be a valid email address"},
		{name: "no guests", mutate: func(in *CreateBookingInput) { in.NumberOfGuests = 0 }, msg: "numberOfGuests"},
		{name: "missing total", mutate: func(in *CreateBookingInput) { in.TotalAmount = nil }, msg: "totalAmount is required"},
		{name: "negative total", mutate: func(in *CreateBookingInput) { in.TotalAmount = amount(-1) }, msg: "totalAmount must be at least 0"},
		{name: "check-out before check-in", mutate: func(in *CreateBookingInput) { in.CheckOut = "2025-05-30" }, msg: "Check-out date must be after check-in date"},
		{name: "bad date", mutate: func(in *CreateBookingInput) { in.CheckIn = "tomorrow" }, msg: "invalid date"},
		{name: "unknown meal", mutate: func(in *CreateBookingInput) { in.MealPackage = "brunch" }, msg: "invalid meal package"},
		{name: "tampered total", mutate: func(in *CreateBookingInput) { in.PricePerNight = &price; in.TotalAmount = amount(1) }, msg: "does not match"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, path := newService(t, &MockNotifier{})
			in := validInput()
			tc.mutate(&in)

			_, err := s.CreateBooking(context.Background(), in)
			require.ErrorIs(t, err, domain.ErrValidation)
			assert.Contains(t, err.Error(), tc.msg)

			data, _ := os.ReadFile(path)
			assert.Equal(t, "[]", string(data))
		})
	}
}

func TestBookingService_CreateBooking_ZeroTotalAccepted(t *testing.T) {
	s, _ := newService(t, &MockNotifier{})
	in := validInput()
	in.TotalAmount = amount(0)

	res, err := s.CreateBooking(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(0), res.Booking.TotalAmount)
	assert.True(t, strings.HasSuffix(res.PaymentURL, "&amount=0"))
}

func TestBookingService_CreateBooking_RecomputedTotalAccepted(t *testing.T) {
	price := 100.0
	s, _ := newService(t, &MockNotifier{})
	in := validInput()
	in.PricePerNight = &price

	res, err := s.CreateBooking(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(460), res.Booking.TotalAmount)
}

func TestBookingService_ConfirmBooking_Success(t *testing.T) {
	notifier := &MockNotifier{}
	notifier.On("SendConfirmation", mock.Anything, mock.MatchedBy(func(b domain.Booking) bool {
		return b.Status == domain.BookingStatusConfirmed
	})).Return(notification.Outcome{Success: true, MessageID: "m-1"}).Once()

	s, _ := newService(t, notifier)
	b := createBooking(t, s)

	res, err := s.ConfirmBooking(context.Background(), b.ID)
	require.NoError(t, err)

	assert.True(t, res.Changed)
	assert.Equal(t, domain.BookingStatusConfirmed, res.Booking.Status)
	require.NotNil(t, res.Booking.PaymentID)
	assert.True(t, strings.HasPrefix(*res.Booking.PaymentID, "PAY-"))
	require.NotNil(t, res.Booking.PaidAt)
	assert.Equal(t, fixedNow, *res.Booking.PaidAt)
	require.NotNil(t, res.Notification)
	assert.True(t, res.Notification.Success)
	notifier.AssertExpectations(t)
}

func TestBookingService_ConfirmBooking_TwiceKeepsPaymentID(t *testing.T) {
	notifier := &MockNotifier{}
	notifier.On("SendConfirmation", mock.Anything, mock.Anything).Return(notification.Outcome{Success: true}).Once()

	s, _ := newService(t, notifier)
	b := createBooking(t, s)

	first, err := s.ConfirmBooking(context.Background(), b.ID)
	require.NoError(t, err)
	second, err := s.ConfirmBooking(context.Background(), b.ID)
	require.NoError(t, err)

	assert.False(t, second.Changed)
	assert.Nil(t, second.Notification)
	assert.Equal(t, *first.Booking.PaymentID, *second.Booking.PaymentID)
	notifier.AssertNumberOfCalls(t, "SendConfirmation", 1)
}

func TestBookingService_ConfirmBooking_Errors(t *testing.T) {
	s, path := newService(t, &MockNotifier{})

	_, err := s.ConfirmBooking(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	before, _ := os.ReadFile(path)
	_, err = s.ConfirmBooking(context.Background(), "999")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	after, _ := os.ReadFile(path)
	assert.Equal(t, before, after)
}

func TestBookingService_ConfirmBooking_CancelledIsInvalidTransition(t *testing.T) {
	notifier := &MockNotifier{}
	notifier.On("SendCancellation", mock.Anything, mock.Anything, "Plans changed").Return(notification.Outcome{Success: true}).Once()

	s, _ := newService(t, notifier)
	b := createBooking(t, s)
	_, err := s.CancelBooking(context.Background(), b.ID, "Plans changed")
	require.NoError(t, err)

	_, err = s.ConfirmBooking(context.Background(), b.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	notifier.AssertNotCalled(t, "SendConfirmation", mock.Anything, mock.Anything)
}

func TestBookingService_ConfirmBooking_NotificationFailureFolded(t *testing.T) {
	notifier := &MockNotifier{}
	notifier.On("SendConfirmation", mock.Anything, mock.Anything).Return(notification.Outcome{Success: false, Error: "535 auth"}).Once()

	s, _ := newService(t, notifier)
	b := createBooking(t, s)

	res, err := s.ConfirmBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, res.Booking.Status)
	assert.False(t, res.Notification.Success)
	assert.Equal(t, "535 auth", res.Notification.Error)
}

func TestBookingService_ConfirmBooking_NotifierPanic(t *testing.T) {
	s, _ := newService(t, panickingNotifier{})
	b := createBooking(t, s)

	res, err := s.ConfirmBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, res.Booking.Status)
	assert.False(t, res.Notification.Success)
	assert.True(t, res.Notification.DummyMode)
	assert.Equal(t, "smtp exploded", res.Notification.Error)
}

func TestBookingService_CancelBooking(t *testing.T) {
	notifier := &MockNotifier{}
	notifier.On("SendCancellation", mock.Anything, mock.Anything, "Overbooked").Return(notification.Outcome{Success: true, DummyMode: true}).Once()

	s, _ := newService(t, notifier)
	b := createBooking(t, s)

	res, err := s.CancelBooking(context.Background(), b.ID, "  Overbooked ")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, res.Booking.Status)
	assert.Equal(t, "Overbooked", res.Booking.CancellationReason)
	require.NotNil(t, res.Booking.CancelledAt)

	again, err := s.CancelBooking(context.Background(), b.ID, "Twice")
	require.NoError(t, err)
	assert.False(t, again.Changed)
	assert.Equal(t, "Overbooked", again.Booking.CancellationReason)
	notifier.AssertExpectations(t)
}

func TestBookingService_CancelBooking_BlankReason(t *testing.T) {
	s, path := newService(t, &MockNotifier{})
	b := createBooking(t, s)
	before, _ := os.ReadFile(path)

	_, err := s.CancelBooking(context.Background(), b.ID, "   ")
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, "Cancellation reason is required", err.Error())

	after, _ := os.ReadFile(path)
	assert.Equal(t, before, after)
}

func TestBookingService_CancelBooking_FromConfirmed(t *testing.T) {
	notifier := &MockNotifier{}
	notifier.On("SendConfirmation", mock.Anything, mock.Anything).Return(notification.Outcome{Success: true}).Once()
	notifier.On("SendCancellation", mock.Anything, mock.Anything, "Guest request").Return(notification.Outcome{Success: true}).Once()

	s, _ := newService(t, notifier)
	b := createBooking(t, s)
	confirmed, err := s.ConfirmBooking(context.Background(), b.ID)
	require.NoError(t, err)

	res, err := s.CancelBooking(context.Background(), b.ID, "Guest request")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, res.Booking.Status)
	assert.Equal(t, *confirmed.Booking.PaymentID, *res.Booking.PaymentID)
}

func TestBookingService_SetStatus(t *testing.T) {
	notifier := &MockNotifier{}
	notifier.On("SendCancellation", mock.Anything, mock.Anything, domain.DefaultCancellationReason).Return(notification.Outcome{Success: true}).Once()

	s, _ := newService(t, notifier)
	b := createBooking(t, s)

	same, err := s.SetStatus(context.Background(), b.ID, "PENDING", "")
	require.NoError(t, err)
	assert.False(t, same.Changed)
	assert.Nil(t, same.Notification)
	require.NotNil(t, same.Booking.UpdatedAt)

	res, err := s.SetStatus(context.Background(), b.ID, "Cancelled", "")
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, domain.DefaultCancellationReason, res.Booking.CancellationReason)
	require.NotNil(t, res.Notification)

	_, err = s.SetStatus(context.Background(), b.ID, "pending", "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = s.SetStatus(context.Background(), b.ID, "archived", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
	notifier.AssertExpectations(t)
}

func TestBookingService_SetStatusConfirmSendsConfirmation(t *testing.T) {
	notifier := &MockNotifier{}
	notifier.On("SendConfirmation", mock.Anything, mock.Anything).Return(notification.Outcome{Success: true}).Once()

	s, _ := newService(t, notifier)
	b := createBooking(t, s)

	res, err := s.SetStatus(context.Background(), b.ID, "confirmed", "")
	require.NoError(t, err)
	require.NotNil(t, res.Booking.PaymentID)
	notifier.AssertExpectations(t)
}

func TestBookingService_LockHeld(t *testing.T) {
	locker := &MockLocker{}
	locker.On("AcquireBookingLock", mock.Anything, domain.BookingID("1")).Return(false, nil).Once()

	s, _ := newService(t, &MockNotifier{}, WithLocker(locker))
	_, err := s.ConfirmBooking(context.Background(), "1")
	assert.ErrorIs(t, err, domain.ErrBookingLocked)
	locker.AssertNotCalled(t, "ReleaseBookingLock", mock.Anything, mock.Anything)
}

func TestBookingService_LockReleasedAfterTransition(t *testing.T) {
	locker := &MockLocker{}
	notifier := &MockNotifier{}
	notifier.On("SendConfirmation", mock.Anything, mock.Anything).Return(notification.Outcome{Success: true})

	s, _ := newService(t, notifier, WithLocker(locker))
	b := createBooking(t, s)
	locker.On("AcquireBookingLock", mock.Anything, b.ID).Return(true, nil).Once()
	locker.On("ReleaseBookingLock", mock.Anything, b.ID).Return(nil).Once()

	_, err := s.ConfirmBooking(context.Background(), b.ID)
	require.NoError(t, err)
	locker.AssertExpectations(t)
}

func TestBookingService_LockError(t *testing.T) {
	locker := &MockLocker{}
	locker.On("AcquireBookingLock", mock.Anything, mock.Anything).Return(false, errors.New("redis down"))

	s, _ := newService(t, &MockNotifier{}, WithLocker(locker))
	_, err := s.CancelBooking(context.Background(), "1", "x")
	assert.ErrorContains(t, err, "redis down")
}

func TestBookingService_PublishFailureDoesNotFail(t *testing.T) {
	producer := &MockProducer{}
	producer.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("kafka down"))

	s, _ := newService(t, &MockNotifier{}, WithProducer(producer, "booking-events"))
	_, err := s.CreateBooking(context.Background(), validInput())
	assert.NoError(t, err)
}

func TestBookingService_SendBill(t *testing.T) {
	notifier := &MockNotifier{}
	notifier.On("SendBill", mock.Anything, mock.Anything, "https://bills.example.com/7").Return(notification.Outcome{Success: true, MessageID: "b-1"}).Once()

	s, _ := newService(t, notifier)
	b := createBooking(t, s)

	res, err := s.SendBill(context.Background(), b.ID, "https://bills.example.com/7")
	require.NoError(t, err)
	assert.Equal(t, "b-1", res.Notification.MessageID)

	_, err = s.SendBill(context.Background(), b.ID, "not a url")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = s.SendBill(context.Background(), "404", "https://bills.example.com/7")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	notifier.AssertExpectations(t)
}

func TestBookingService_Quote(t *testing.T) {
	s, _ := newService(t, &MockNotifier{})

	q, err := s.Quote(context.Background(), QuoteInput{
		PricePerNight:  100,
		CheckIn:        "2025-06-01",
		CheckOut:       "2025-06-03",
		NumberOfGuests: 2,
		MealPackage:    "breakfast",
	})
	require.NoError(t, err)
	assert.Equal(t, 460.0, q.Total)

	_, err = s.Quote(context.Background(), QuoteInput{CheckIn: "2025-06-01", CheckOut: "2025-06-03"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

// stalledProducer blocks until the publish context ends.
type stalledProducer struct {
	hadDeadline bool
}

func (p *stalledProducer) Publish(ctx context.Context, _, _ string, _ interface{}) error {
	_, p.hadDeadline = ctx.Deadline()
	<-ctx.Done()
	return ctx.Err()
}

func TestBookingService_PublishIsTimeBounded(t *testing.T) {
	producer := &stalledProducer{}
	s, _ := newService(t, &MockNotifier{},
		WithProducer(producer, "booking-events"),
		WithPublishTimeout(20*time.Millisecond))

	done := make(chan error, 1)
	go func() {
		_, err := s.CreateBooking(context.Background(), validInput())
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("create blocked on a stalled broker")
	}
	assert.True(t, producer.hadDeadline)
}
