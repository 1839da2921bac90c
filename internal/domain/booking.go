package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// ParseBookingStatus accepts any casing of the three canonical statuses.
func ParseBookingStatus(raw string) (BookingStatus, error) {
	status := BookingStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", NewValidationError(fmt.Sprintf("invalid status %q", raw))
	}
	return status, nil
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCancelled:
		return true
	}
	return false
}

// Normalize lowercases the persisted value and falls back to pending for
// anything that is not a canonical status.
func (s BookingStatus) Normalize() BookingStatus {
	status := BookingStatus(strings.ToLower(strings.TrimSpace(string(s))))
	if !status.Valid() {
		return BookingStatusPending
	}
	return status
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
// Staying in the same state is always allowed and treated as a no-op.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	from := s.Normalize()
	if from == next {
		return true
	}
	switch from {
	case BookingStatusPending:
		return next == BookingStatusConfirmed || next == BookingStatusCancelled
	case BookingStatusConfirmed:
		return next == BookingStatusCancelled
	}
	return false
}

// BookingID is always compared in its string form. Stored ids may have been
// written as JSON numbers by older clients.
type BookingID string

func NewBookingID(raw string) BookingID {
	return BookingID(strings.TrimSpace(raw))
}

func (id BookingID) String() string { return string(id) }

func (id BookingID) Empty() bool { return id == "" }

func (id *BookingID) UnmarshalJSON(data []byte) error {
	s, err := looseString(data)
	if err != nil {
		return fmt.Errorf("booking id: %w", err)
	}
	*id = NewBookingID(s)
	return nil
}

type HotelID string

func (id *HotelID) UnmarshalJSON(data []byte) error {
	s, err := looseString(data)
	if err != nil {
		return fmt.Errorf("hotel id: %w", err)
	}
	*id = HotelID(strings.TrimSpace(s))
	return nil
}

// Amount is a money value in the hotel currency. The storefront sends it as a
// preformatted string ("460.00"), the file may hold plain numbers.
type Amount float64

func (a *Amount) UnmarshalJSON(data []byte) error {
	s, err := looseString(data)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	if s == "" {
		*a = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	*a = Amount(v)
	return nil
}

func (a Amount) String() string {
	return strconv.FormatFloat(float64(a), 'f', -1, 64)
}

// GuestCount decodes from a JSON number or a numeric string; form inputs post
// the latter.
type GuestCount int

func (c *GuestCount) UnmarshalJSON(data []byte) error {
	s, err := looseString(data)
	if err != nil {
		return fmt.Errorf("number of guests: %w", err)
	}
	if s == "" {
		*c = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("number of guests: %w", err)
	}
	*c = GuestCount(n)
	return nil
}

type MealPackage string

const (
	MealPackageNone      MealPackage = "none"
	MealPackageBreakfast MealPackage = "breakfast"
	MealPackageHalfBoard MealPackage = "halfboard"
	MealPackageFullBoard MealPackage = "fullboard"
)

func ParseMealPackage(raw string) (MealPackage, error) {
	switch p := MealPackage(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return MealPackageNone, nil
	case MealPackageNone, MealPackageBreakfast, MealPackageHalfBoard, MealPackageFullBoard:
		return p, nil
	}
	return "", NewValidationError(fmt.Sprintf("invalid meal package %q", raw))
}

type Booking struct {
	ID                 BookingID     `json:"id" bson:"id"`
	HotelID            HotelID       `json:"hotelId" bson:"hotelId"`
	HotelName          string        `json:"hotelName" bson:"hotelName"`
	GuestName          string        `json:"guestName" bson:"guestName"`
	Email              string        `json:"email" bson:"email"`
	Phone              string        `json:"phone" bson:"phone"`
	NumberOfGuests     GuestCount    `json:"numberOfGuests" bson:"numberOfGuests"`
	Description        string        `json:"description,omitempty" bson:"description,omitempty"`
	CheckIn            string        `json:"checkIn" bson:"checkIn"`
	CheckOut           string        `json:"checkOut" bson:"checkOut"`
	TotalAmount        Amount        `json:"totalAmount" bson:"totalAmount"`
	MealPackage        MealPackage   `json:"mealPackage" bson:"mealPackage"`
	Guide              bool          `json:"guide" bson:"guide"`
	Status             BookingStatus `json:"status" bson:"status"`
	PaymentID          *string       `json:"paymentId" bson:"paymentId"`
	CancellationReason string        `json:"cancellationReason,omitempty" bson:"cancellationReason,omitempty"`
	CreatedAt          time.Time     `json:"createdAt" bson:"createdAt"`
	PaidAt             *time.Time    `json:"paidAt,omitempty" bson:"paidAt,omitempty"`
	CancelledAt        *time.Time    `json:"cancelledAt,omitempty" bson:"cancelledAt,omitempty"`
	UpdatedAt          *time.Time    `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

// Confirm moves a pending booking to confirmed. A booking that is already
// confirmed keeps its payment id and paid-at stamp; changed is false then.
func (b *Booking) Confirm(now time.Time, paymentID string) (changed bool, err error) {
	switch b.Status.Normalize() {
	case BookingStatusConfirmed:
		b.Status = BookingStatusConfirmed
		return false, nil
	case BookingStatusCancelled:
		return false, fmt.Errorf("%w: booking %s is cancelled", ErrInvalidTransition, b.ID)
	}
	b.Status = BookingStatusConfirmed
	if b.PaymentID == nil {
		b.PaymentID = &paymentID
		b.PaidAt = &now
	}
	return true, nil
}

// Cancel moves a pending or confirmed booking to cancelled.
func (b *Booking) Cancel(now time.Time, reason string) (changed bool, err error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return false, NewValidationError("Cancellation reason is required")
	}
	if b.Status.Normalize() == BookingStatusCancelled {
		b.Status = BookingStatusCancelled
		return false, nil
	}
	b.Status = BookingStatusCancelled
	b.CancelledAt = &now
	b.CancellationReason = reason
	return true, nil
}

// LastModified is the latest lifecycle stamp on the record. Mirrors use it to
// refuse snapshots older than the copy they hold.
func (b Booking) LastModified() time.Time {
	latest := b.CreatedAt
	for _, t := range []*time.Time{b.PaidAt, b.CancelledAt, b.UpdatedAt} {
		if t != nil && t.After(latest) {
			latest = *t
		}
	}
	return latest
}

// DefaultCancellationReason is recorded when an admin cancels through the
// status editor without giving a reason.
const DefaultCancellationReason = "No reason provided"

// SetStatus applies an admin status edit. updatedAt is stamped even when the
// status does not change.
func (b *Booking) SetStatus(next BookingStatus, reason string, now time.Time, paymentID func() string) (changed bool, err error) {
	if !b.Status.CanTransitionTo(next) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status.Normalize(), next)
	}

	switch next {
	case BookingStatusConfirmed:
		changed, err = b.Confirm(now, paymentID())
	case BookingStatusCancelled:
		if strings.TrimSpace(reason) == "" {
			reason = DefaultCancellationReason
		}
		changed, err = b.Cancel(now, reason)
	default:
		b.Status = BookingStatusPending
	}
	if err != nil {
		return false, err
	}
	b.UpdatedAt = &now
	return changed, nil
}

// Normalize returns the display form of a stored record: string id and a
// canonical lowercase status. The receiver is not modified.
func Normalize(b Booking) Booking {
	b.ID = NewBookingID(string(b.ID))
	b.Status = b.Status.Normalize()
	return b
}

// Summary renders the short plain-text recap returned after admin actions.
func (b Booking) Summary() string {
	return fmt.Sprintf(`
    Booking ID: %s
    Hotel: %s
    Guest: %s
    Email: %s
    Dates: %s - %s
    Status: %s
  `, b.ID, b.HotelName, b.GuestName, b.Email, displayDate(b.CheckIn), displayDate(b.CheckOut), b.Status)
}

// ParseStayDate accepts plain dates and RFC 3339 timestamps.
func ParseStayDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, NewValidationError(fmt.Sprintf("invalid date %q", raw))
	}
	return t, nil
}

func displayDate(raw string) string {
	t, err := ParseStayDate(raw)
	if err != nil {
		return raw
	}
	return t.Format("1/2/2006")
}

func looseString(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return "", fmt.Errorf("expected string or number, got %s", data)
	}
	return n.String(), nil
}
