package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Domenick1991/hotelbooking/internal/domain"
	"github.com/Domenick1991/hotelbooking/internal/export"
	"github.com/Domenick1991/hotelbooking/internal/service/booking"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type BookingHandler struct {
	service booking.BookingUseCase
	logger  *zap.Logger
}

type paymentRequest struct {
	BookingID domain.BookingID `json:"bookingId"`
}

type cancelRequest struct {
	BookingID          domain.BookingID `json:"bookingId"`
	CancellationReason string           `json:"cancellationReason"`
}

type statusRequest struct {
	Status             string `json:"status"`
	CancellationReason string `json:"cancellationReason"`
}

type billRequest struct {
	BookingID domain.BookingID `json:"bookingId"`
	BillURL   string           `json:"billUrl"`
}

type transitionResponse struct {
	Success         bool           `json:"success"`
	Message         string         `json:"message"`
	Booking         domain.Booking `json:"booking"`
	EmailSent       bool           `json:"emailSent"`
	EmailPreviewURL *string        `json:"emailPreviewUrl"`
	EmailDummyMode  bool           `json:"emailDummyMode"`
	EmailError      string         `json:"emailError,omitempty"`
	BookingSummary  string         `json:"bookingSummary,omitempty"`
}

const notFoundMessage = "Booking not found"

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func NewBookingHandler(service booking.BookingUseCase, logger *zap.Logger) *BookingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingHandler{service: service, logger: logger}
}

// Register mounts the booking routes. createLimit guards POST /create and may
// be nil.
func (h *BookingHandler) Register(router *gin.RouterGroup, createLimit gin.HandlerFunc) {
	router.GET("/bookings", h.list)
	if createLimit != nil {
		router.POST("/create", createLimit, h.create)
	} else {
		router.POST("/create", h.create)
	}
	router.POST("/process-payment", h.processPayment)
	router.POST("/cancel", h.cancel)
	router.PUT("/status/:bookingId", h.updateStatus)
	router.GET("/details/:bookingId", h.details)
	router.POST("/quote", h.quote)
	router.POST("/send-bill", h.sendBill)
	router.GET("/export", h.export)
}

func (h *BookingHandler) list(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.ListBookings(c.Request.Context()))
}

func (h *BookingHandler) create(c *gin.Context) {
	var req booking.CreateBookingInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid booking data", Error: err.Error()})
		return
	}

	result, err := h.service.CreateBooking(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err, "Error creating booking")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *BookingHandler) processPayment(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Message: "Booking ID is required", Error: err.Error()})
		return
	}

	result, err := h.service.ConfirmBooking(c.Request.Context(), req.BookingID)
	if err != nil {
		h.fail(c, err, "Error processing payment")
		return
	}
	resp := newTransitionResponse("Payment processed successfully", result)
	resp.BookingSummary = result.Booking.Summary()
	c.JSON(http.StatusOK, resp)
}

func (h *BookingHandler) cancel(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Message: "Booking ID is required", Error: err.Error()})
		return
	}

	result, err := h.service.CancelBooking(c.Request.Context(), req.BookingID, req.CancellationReason)
	if err != nil {
		h.fail(c, err, "Error cancelling booking")
		return
	}
	resp := newTransitionResponse("Booking cancelled successfully", result)
	resp.BookingSummary = result.Booking.Summary()
	c.JSON(http.StatusOK, resp)
}

func (h *BookingHandler) updateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Message: "Booking ID and status are required"})
		return
	}

	id := domain.NewBookingID(c.Param("bookingId"))
	result, err := h.service.SetStatus(c.Request.Context(), id, req.Status, req.CancellationReason)
	if err != nil {
		h.fail(c, err, "Error updating booking status")
		return
	}
	c.JSON(http.StatusOK, newTransitionResponse(fmt.Sprintf("Booking status updated to %s", result.Booking.Status), result))
}

func (h *BookingHandler) details(c *gin.Context) {
	b, err := h.service.GetBooking(c.Request.Context(), domain.NewBookingID(c.Param("bookingId")))
	if err != nil {
		h.fail(c, err, "Error fetching booking")
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) quote(c *gin.Context) {
	var req booking.QuoteInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid quote request", Error: err.Error()})
		return
	}

	q, err := h.service.Quote(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err, "Error calculating quote")
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *BookingHandler) sendBill(c *gin.Context) {
	var req billRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Message: "Booking ID and bill URL are required", Error: err.Error()})
		return
	}

	result, err := h.service.SendBill(c.Request.Context(), req.BookingID, req.BillURL)
	if err != nil {
		h.fail(c, err, "Error sending bill")
		return
	}
	c.JSON(http.StatusOK, newTransitionResponse("Bill email processed", result))
}

func (h *BookingHandler) export(c *gin.Context) {
	bookings := h.service.ListBookings(c.Request.Context())

	c.Header("Content-Disposition", `attachment; filename="bookings.xlsx"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Status(http.StatusOK)
	if err := export.WriteBookings(c.Writer, bookings); err != nil {
		h.logger.Error("export failed", zap.Error(err))
		_ = c.Error(err)
	}
}

func newTransitionResponse(message string, result *booking.TransitionResult) transitionResponse {
	resp := transitionResponse{
		Success: true,
		Message: message,
		Booking: result.Booking,
	}
	if out := result.Notification; out != nil {
		resp.EmailSent = out.Success
		resp.EmailDummyMode = out.DummyMode
		resp.EmailError = out.Error
		if out.PreviewURL != "" {
			preview := out.PreviewURL
			resp.EmailPreviewURL = &preview
		}
	}
	return resp
}

// fail maps domain errors onto HTTP statuses.
func (h *BookingHandler) fail(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, errorResponse{Message: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Message: notFoundMessage})
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrBookingLocked):
		c.JSON(http.StatusConflict, errorResponse{Message: err.Error()})
	default:
		h.logger.Error(fallback, zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Message: fallback, Error: err.Error()})
	}
}
