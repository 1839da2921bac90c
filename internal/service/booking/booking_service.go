package booking

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Domenick1991/hotelbooking/internal/domain"
	"github.com/Domenick1991/hotelbooking/internal/kafka"
	"github.com/Domenick1991/hotelbooking/internal/metrics"
	"github.com/Domenick1991/hotelbooking/internal/pricing"
	"github.com/Domenick1991/hotelbooking/internal/repository"
	"github.com/Domenick1991/hotelbooking/internal/service/notification"
	"go.uber.org/zap"
)

type BookingUseCase interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*CreateResult, error)
	ConfirmBooking(ctx context.Context, id domain.BookingID) (*TransitionResult, error)
	CancelBooking(ctx context.Context, id domain.BookingID, reason string) (*TransitionResult, error)
	SetStatus(ctx context.Context, id domain.BookingID, status, reason string) (*TransitionResult, error)
	GetBooking(ctx context.Context, id domain.BookingID) (*domain.Booking, error)
	ListBookings(ctx context.Context) []domain.Booking
	SendBill(ctx context.Context, id domain.BookingID, billURL string) (*TransitionResult, error)
	Quote(ctx context.Context, input QuoteInput) (*pricing.Quote, error)
}

type RecordStore interface {
	Append(ctx context.Context, booking domain.Booking) error
	ReadAll(ctx context.Context) []domain.Booking
	Get(ctx context.Context, id domain.BookingID) (domain.Booking, error)
	Update(ctx context.Context, id domain.BookingID, mutate repository.Mutation) (domain.Booking, bool, error)
}

type Notifier interface {
	SendConfirmation(ctx context.Context, b domain.Booking) notification.Outcome
	SendCancellation(ctx context.Context, b domain.Booking, reason string) notification.Outcome
	SendBill(ctx context.Context, b domain.Booking, billURL string) notification.Outcome
}

type Locker interface {
	AcquireBookingLock(ctx context.Context, id domain.BookingID) (bool, error)
	ReleaseBookingLock(ctx context.Context, id domain.BookingID) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type CreateBookingInput struct {
	HotelID        domain.HotelID    `json:"hotelId" validate:"required"`
	HotelName      string            `json:"hotelName" validate:"required"`
	GuestName      string            `json:"guestName" validate:"required"`
	Email          string            `json:"email" validate:"required,email"`
	Phone          string            `json:"phone" validate:"required"`
	NumberOfGuests domain.GuestCount `json:"numberOfGuests" validate:"gt=0"`
	Description    string            `json:"description"`
	CheckIn        string            `json:"checkIn" validate:"required"`
	CheckOut       string            `json:"checkOut" validate:"required"`
	TotalAmount    *domain.Amount    `json:"totalAmount" validate:"required,gte=0"`
	MealPackage    string            `json:"mealPackage"`
	Guide          bool              `json:"guide"`
	// PricePerNight switches on server-side recomputation of the total.
	PricePerNight *float64 `json:"pricePerNight,omitempty" validate:"omitempty,gte=0"`
}

type QuoteInput struct {
	PricePerNight  float64           `json:"pricePerNight" validate:"gte=0"`
	CheckIn        string            `json:"checkIn" validate:"required"`
	CheckOut       string            `json:"checkOut" validate:"required"`
	NumberOfGuests domain.GuestCount `json:"numberOfGuests" validate:"gt=0"`
	MealPackage    string            `json:"mealPackage"`
	Guide          bool              `json:"guide"`
}

type CreateResult struct {
	Booking    domain.Booking `json:"booking"`
	PaymentURL string         `json:"paymentUrl"`
}

// TransitionResult is returned by every admin action. Notification is nil
// when no email was attempted.
type TransitionResult struct {
	Booking      domain.Booking
	Notification *notification.Outcome
	Changed      bool
}

type BookingService struct {
	store         RecordStore
	notifier      Notifier
	locker        Locker
	producer      Producer
	eventsTopic   string
	publishWait   time.Duration
	validator     *Validator
	ids           *domain.IDGenerator
	now           func() time.Time
	paymentPrefix string
	paymentPath   string
	logger        *zap.Logger
}

type BookingServiceOption func(*BookingService)

func WithProducer(p Producer, topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.producer = p
		s.eventsTopic = topic
	}
}

// WithPublishTimeout bounds each event publish.
func WithPublishTimeout(d time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		if d > 0 {
			s.publishWait = d
		}
	}
}

func WithLocker(l Locker) BookingServiceOption {
	return func(s *BookingService) {
		s.locker = l
	}
}

func WithLogger(l *zap.Logger) BookingServiceOption {
	return func(s *BookingService) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) {
		if now != nil {
			s.now = now
		}
	}
}

func WithPaymentPrefix(prefix string) BookingServiceOption {
	return func(s *BookingService) {
		s.paymentPrefix = prefix
	}
}

func WithPaymentPath(path string) BookingServiceOption {
	return func(s *BookingService) {
		if path != "" {
			s.paymentPath = path
		}
	}
}

func NewBookingService(store RecordStore, notifier Notifier, opts ...BookingServiceOption) *BookingService {
	service := &BookingService{
		store:         store,
		notifier:      notifier,
		validator:     NewValidator(),
		ids:           &domain.IDGenerator{},
		now:           time.Now,
		paymentPrefix: "PAY-",
		paymentPath:   "/process-payment",
		publishWait:   2 * time.Second,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*CreateResult, error) {
	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}

	checkIn, err := domain.ParseStayDate(input.CheckIn)
	if err != nil {
		return nil, err
	}
	checkOut, err := domain.ParseStayDate(input.CheckOut)
	if err != nil {
		return nil, err
	}
	if pricing.Nights(checkIn, checkOut) <= 0 {
		return nil, domain.NewValidationError("Check-out date must be after check-in date")
	}

	meal, err := domain.ParseMealPackage(input.MealPackage)
	if err != nil {
		return nil, err
	}

	if input.PricePerNight != nil {
		quote, err := pricing.Calculate(pricing.QuoteInput{
			PricePerNight:  *input.PricePerNight,
			CheckIn:        checkIn,
			CheckOut:       checkOut,
			NumberOfGuests: int(input.NumberOfGuests),
			MealPackage:    meal,
			Guide:          input.Guide,
		})
		if err != nil {
			return nil, err
		}
		if !quote.Matches(*input.TotalAmount) {
			return nil, domain.NewValidationError(fmt.Sprintf("totalAmount %s does not match the computed total %.2f", input.TotalAmount.String(), quote.Total))
		}
	}

	now := s.now()
	booking := domain.Booking{
		ID:             s.ids.Next(now),
		HotelID:        input.HotelID,
		HotelName:      input.HotelName,
		GuestName:      input.GuestName,
		Email:          input.Email,
		Phone:          input.Phone,
		NumberOfGuests: input.NumberOfGuests,
		Description:    input.Description,
		CheckIn:        input.CheckIn,
		CheckOut:       input.CheckOut,
		TotalAmount:    *input.TotalAmount,
		MealPackage:    meal,
		Guide:          input.Guide,
		Status:         domain.BookingStatusPending,
		PaymentID:      nil,
		CreatedAt:      now,
	}

	if err := s.store.Append(ctx, booking); err != nil {
		s.logger.Error("booking not persisted to primary store", zap.String("booking_id", booking.ID.String()), zap.Error(err))
	}
	metrics.IncTransition(string(domain.BookingStatusPending))
	s.publish(ctx, kafka.EventBookingCreated, booking)

	s.logger.Info("booking created", zap.String("booking_id", booking.ID.String()), zap.String("hotel", booking.HotelName))
	return &CreateResult{
		Booking:    booking,
		PaymentURL: s.paymentURL(booking),
	}, nil
}

func (s *BookingService) ConfirmBooking(ctx context.Context, id domain.BookingID) (*TransitionResult, error) {
	if id.Empty() {
		return nil, domain.NewValidationError("Booking ID is required")
	}

	release, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	now := s.now()
	paymentID := s.newPaymentID(now)
	updated, changed, err := s.store.Update(ctx, id, func(b *domain.Booking) (bool, error) {
		return b.Confirm(now, paymentID)
	})
	if err != nil {
		return nil, err
	}

	result := &TransitionResult{Booking: domain.Normalize(updated), Changed: changed}
	if !changed {
		return result, nil
	}

	metrics.IncTransition(string(domain.BookingStatusConfirmed))
	out := s.notify("confirmation", func() notification.Outcome {
		return s.notifier.SendConfirmation(ctx, result.Booking)
	})
	result.Notification = &out
	s.publish(ctx, kafka.EventBookingConfirmed, updated)
	return result, nil
}

func (s *BookingService) CancelBooking(ctx context.Context, id domain.BookingID, reason string) (*TransitionResult, error) {
	if id.Empty() {
		return nil, domain.NewValidationError("Booking ID is required")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, domain.NewValidationError("Cancellation reason is required")
	}

	release, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	now := s.now()
	updated, changed, err := s.store.Update(ctx, id, func(b *domain.Booking) (bool, error) {
		return b.Cancel(now, reason)
	})
	if err != nil {
		return nil, err
	}

	result := &TransitionResult{Booking: domain.Normalize(updated), Changed: changed}
	if !changed {
		return result, nil
	}

	metrics.IncTransition(string(domain.BookingStatusCancelled))
	out := s.notify("cancellation", func() notification.Outcome {
		return s.notifier.SendCancellation(ctx, result.Booking, result.Booking.CancellationReason)
	})
	result.Notification = &out
	s.publish(ctx, kafka.EventBookingCancelled, updated)
	return result, nil
}

// SetStatus is the admin status editor. The record is always rewritten to
// stamp updatedAt; an email goes out only when the status value changed.
func (s *BookingService) SetStatus(ctx context.Context, id domain.BookingID, status, reason string) (*TransitionResult, error) {
	if id.Empty() {
		return nil, domain.NewValidationError("Booking ID is required")
	}
	next, err := domain.ParseBookingStatus(status)
	if err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	now := s.now()
	var statusChanged bool
	updated, _, err := s.store.Update(ctx, id, func(b *domain.Booking) (bool, error) {
		changed, err := b.SetStatus(next, reason, now, func() string { return s.newPaymentID(now) })
		if err != nil {
			return false, err
		}
		statusChanged = changed
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	result := &TransitionResult{Booking: domain.Normalize(updated), Changed: statusChanged}
	s.publish(ctx, kafka.EventBookingStatusUpdated, updated)
	if !statusChanged {
		return result, nil
	}

	metrics.IncTransition(string(next))
	var out notification.Outcome
	switch next {
	case domain.BookingStatusConfirmed:
		out = s.notify("confirmation", func() notification.Outcome {
			return s.notifier.SendConfirmation(ctx, result.Booking)
		})
	case domain.BookingStatusCancelled:
		out = s.notify("cancellation", func() notification.Outcome {
			return s.notifier.SendCancellation(ctx, result.Booking, result.Booking.CancellationReason)
		})
	default:
		return result, nil
	}
	result.Notification = &out
	return result, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id domain.BookingID) (*domain.Booking, error) {
	if id.Empty() {
		return nil, domain.NewValidationError("Booking ID is required")
	}
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	normalized := domain.Normalize(b)
	return &normalized, nil
}

// SendBill emails a QR code that links to a bill hosted elsewhere.
func (s *BookingService) SendBill(ctx context.Context, id domain.BookingID, billURL string) (*TransitionResult, error) {
	if id.Empty() {
		return nil, domain.NewValidationError("Booking ID is required")
	}
	if !validBillURL(billURL) {
		return nil, domain.NewValidationError("billUrl must be an absolute http(s) URL")
	}

	booking, err := s.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	out := s.notify("bill", func() notification.Outcome {
		return s.notifier.SendBill(ctx, *booking, billURL)
	})
	return &TransitionResult{Booking: *booking, Notification: &out}, nil
}

func (s *BookingService) Quote(_ context.Context, input QuoteInput) (*pricing.Quote, error) {
	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}
	checkIn, err := domain.ParseStayDate(input.CheckIn)
	if err != nil {
		return nil, err
	}
	checkOut, err := domain.ParseStayDate(input.CheckOut)
	if err != nil {
		return nil, err
	}
	meal, err := domain.ParseMealPackage(input.MealPackage)
	if err != nil {
		return nil, err
	}

	quote, err := pricing.Calculate(pricing.QuoteInput{
		PricePerNight:  input.PricePerNight,
		CheckIn:        checkIn,
		CheckOut:       checkOut,
		NumberOfGuests: int(input.NumberOfGuests),
		MealPackage:    meal,
		Guide:          input.Guide,
	})
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

// lock takes the per-booking distributed lock when a locker is configured.
func (s *BookingService) lock(ctx context.Context, id domain.BookingID) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	ok, err := s.locker.AcquireBookingLock(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("acquire booking lock: %w", err)
	}
	if !ok {
		return nil, domain.ErrBookingLocked
	}
	return func() {
		if err := s.locker.ReleaseBookingLock(context.WithoutCancel(ctx), id); err != nil {
			s.logger.Warn("failed to release booking lock", zap.String("booking_id", id.String()), zap.Error(err))
		}
	}, nil
}

// notify runs one notification attempt and converts a panic into a failed
// dummy-mode outcome so the transition result is still returned.
func (s *BookingService) notify(kind string, send func() notification.Outcome) (out notification.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("notification panicked", zap.String("kind", kind), zap.Any("panic", r))
			out = notification.Outcome{Success: false, Error: fmt.Sprint(r), DummyMode: true}
		}
	}()
	if s.notifier == nil {
		return notification.Outcome{Success: false, Error: "notifier not configured", DummyMode: true}
	}
	return send()
}

func (s *BookingService) publish(ctx context.Context, eventType kafka.EventType, booking domain.Booking) {
	if s.producer == nil || s.eventsTopic == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.publishWait)
	defer cancel()

	event := kafka.NewBookingEvent(eventType, booking, s.now())
	if err := s.producer.Publish(ctx, s.eventsTopic, booking.ID.String(), event); err != nil {
		s.logger.Warn("failed to publish booking event",
			zap.String("type", string(eventType)),
			zap.String("booking_id", booking.ID.String()),
			zap.Error(err))
	}
}

func (s *BookingService) newPaymentID(now time.Time) string {
	return s.paymentPrefix + strconv.FormatInt(now.UnixNano(), 10)
}

func (s *BookingService) paymentURL(b domain.Booking) string {
	return fmt.Sprintf("%s?bookingId=%s&amount=%s", s.paymentPath, url.QueryEscape(b.ID.String()), url.QueryEscape(b.TotalAmount.String()))
}

func validBillURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

var _ BookingUseCase = (*BookingService)(nil)
