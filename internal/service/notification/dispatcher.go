package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/hotelbooking/internal/domain"
	"github.com/Domenick1991/hotelbooking/internal/email"
	"github.com/Domenick1991/hotelbooking/internal/metrics"
	"go.uber.org/zap"
)

const DummyMessageID = "dummy-message-id"

// Outcome describes one delivery attempt. Failures are reported here and never
// as errors.
type Outcome struct {
	Success    bool   `json:"success"`
	MessageID  string `json:"messageId,omitempty"`
	PreviewURL string `json:"previewUrl,omitempty"`
	DummyMode  bool   `json:"dummyMode"`
	Error      string `json:"error,omitempty"`
}

func failed(err error) Outcome {
	return Outcome{Success: false, Error: err.Error()}
}

type Dispatcher struct {
	transport      email.Transport
	dummy          bool
	timeout        time.Duration
	detailsBaseURL string
	previewBaseURL string
	logger         *zap.Logger
}

type Option func(*Dispatcher)

func WithTimeout(d time.Duration) Option {
	return func(n *Dispatcher) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// WithDetailsBaseURL sets the prefix the booking id is appended to for the
// confirmation QR code.
func WithDetailsBaseURL(url string) Option {
	return func(n *Dispatcher) { n.detailsBaseURL = url }
}

// WithPreviewBaseURL points at a mail catcher UI; the message id is appended.
func WithPreviewBaseURL(url string) Option {
	return func(n *Dispatcher) { n.previewBaseURL = url }
}

func WithLogger(l *zap.Logger) Option {
	return func(n *Dispatcher) {
		if l != nil {
			n.logger = l
		}
	}
}

func NewDispatcher(transport email.Transport, opts ...Option) *Dispatcher {
	n := &Dispatcher{
		transport:      transport,
		timeout:        10 * time.Second,
		detailsBaseURL: "http://localhost:3000/booking/details/",
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NewDummyDispatcher logs every would-be email and reports success.
func NewDummyDispatcher(opts ...Option) *Dispatcher {
	n := NewDispatcher(nil, opts...)
	n.dummy = true
	return n
}

func (n *Dispatcher) DetailsURL(id domain.BookingID) string {
	return n.detailsBaseURL + id.String()
}

func (n *Dispatcher) SendConfirmation(ctx context.Context, b domain.Booking) Outcome {
	if n.dummy {
		return n.logDummy("confirmation", b, zap.String("details_url", n.DetailsURL(b.ID)))
	}

	detailsURL := n.DetailsURL(b.ID)
	qr, err := email.QRCode(email.BookingQRName, detailsURL)
	if err != nil {
		return n.finish("confirmation", b, failed(err))
	}
	html, err := email.RenderConfirmation(b, detailsURL)
	if err != nil {
		return n.finish("confirmation", b, failed(err))
	}

	return n.finish("confirmation", b, n.send(ctx, email.Message{
		FromName: b.HotelName,
		To:       b.Email,
		Subject:  email.ConfirmationSubject(b),
		HTML:     html,
		Inline:   []email.Attachment{qr},
	}))
}

func (n *Dispatcher) SendCancellation(ctx context.Context, b domain.Booking, reason string) Outcome {
	if n.dummy {
		return n.logDummy("cancellation", b, zap.String("reason", reason))
	}

	html, err := email.RenderCancellation(b, reason)
	if err != nil {
		return n.finish("cancellation", b, failed(err))
	}

	return n.finish("cancellation", b, n.send(ctx, email.Message{
		FromName: b.HotelName,
		To:       b.Email,
		Subject:  email.CancellationSubject(b),
		HTML:     html,
	}))
}

func (n *Dispatcher) SendBill(ctx context.Context, b domain.Booking, billURL string) Outcome {
	if n.dummy {
		return n.logDummy("bill", b, zap.String("bill_url", billURL))
	}

	qr, err := email.QRCode(email.BillQRName, billURL)
	if err != nil {
		return n.finish("bill", b, failed(err))
	}
	html, err := email.RenderBill(b, billURL)
	if err != nil {
		return n.finish("bill", b, failed(err))
	}

	fromName := b.HotelName
	if fromName == "" {
		fromName = "Our Hotel"
	}
	return n.finish("bill", b, n.send(ctx, email.Message{
		FromName: fromName,
		To:       b.Email,
		Subject:  email.BillSubject(b),
		HTML:     html,
		Inline:   []email.Attachment{qr},
	}))
}

type sendResult struct {
	id  string
	err error
}

// send bounds the transport call by the dispatcher timeout. A transport that
// ignores the context is abandoned and its result discarded.
func (n *Dispatcher) send(ctx context.Context, msg email.Message) Outcome {
	if n.transport == nil {
		return failed(fmt.Errorf("email transport not configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	done := make(chan sendResult, 1)
	go func() {
		id, err := n.transport.Send(ctx, msg)
		done <- sendResult{id: id, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return failed(res.err)
		}
		return Outcome{Success: true, MessageID: res.id, PreviewURL: n.previewURL(res.id)}
	case <-ctx.Done():
		return failed(fmt.Errorf("email send: %w", ctx.Err()))
	}
}

func (n *Dispatcher) previewURL(messageID string) string {
	if n.previewBaseURL == "" || messageID == "" {
		return ""
	}
	return n.previewBaseURL + strings.Trim(messageID, "<>")
}

func (n *Dispatcher) logDummy(kind string, b domain.Booking, fields ...zap.Field) Outcome {
	fields = append([]zap.Field{
		zap.String("kind", kind),
		zap.String("to", b.Email),
		zap.String("booking_id", b.ID.String()),
		zap.String("guest", b.GuestName),
		zap.String("hotel", b.HotelName),
		zap.String("check_in", b.CheckIn),
		zap.String("check_out", b.CheckOut),
	}, fields...)
	n.logger.Info("email disabled, would send", fields...)
	metrics.IncNotification(kind, "dummy")
	return Outcome{Success: true, MessageID: DummyMessageID, DummyMode: true}
}

func (n *Dispatcher) finish(kind string, b domain.Booking, out Outcome) Outcome {
	if out.Success {
		metrics.IncNotification(kind, "sent")
		n.logger.Info("email sent", zap.String("kind", kind), zap.String("booking_id", b.ID.String()), zap.String("message_id", out.MessageID))
		return out
	}
	metrics.IncNotification(kind, "failed")
	n.logger.Warn("email failed", zap.String("kind", kind), zap.String("booking_id", b.ID.String()), zap.String("error", out.Error))
	return out
}
