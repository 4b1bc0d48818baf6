package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-marketplace/internal/services"
	"ticket-marketplace/internal/status"
	"ticket-marketplace/models"
)

type BookingHandler struct {
	app            *pocketbase.PocketBase
	bookingService *services.BookingService
}

func NewBookingHandler(app *pocketbase.PocketBase, bookingService *services.BookingService) *BookingHandler {
	return &BookingHandler{
		app:            app,
		bookingService: bookingService,
	}
}

// StartBooking - Open a new booking draft for an event
func (h *BookingHandler) StartBooking(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		EventID    string `json:"event_id"`
		TicketType string `json:"ticket_type"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}
	if req.EventID == "" {
		return apis.NewBadRequestError("event_id is required", nil)
	}
	if req.TicketType == "" {
		req.TicketType = "Standard"
	}

	user := &services.UserInfo{
		ID:    e.Auth.Id,
		Email: e.Auth.Email(),
		Name:  e.Auth.GetString("name"),
	}

	draft, err := h.bookingService.StartBooking(e.Request.Context(), user, req.EventID, req.TicketType)
	if err != nil {
		return bookingError(err)
	}

	return e.JSON(http.StatusCreated, draft)
}

// GetDraft - Return the current state of a booking draft
func (h *BookingHandler) GetDraft(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	draftID := e.Request.PathValue("bookingId")

	draft, err := h.bookingService.GetDraft(e.Request.Context(), e.Auth.Id, draftID)
	if err != nil {
		return bookingError(err)
	}

	return e.JSON(http.StatusOK, draft)
}

// ConfirmDetails - Validate attendee details and advance to payment
func (h *BookingHandler) ConfirmDetails(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	draftID := e.Request.PathValue("bookingId")

	var details models.ContactDetails
	if err := e.BindBody(&details); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}

	draft, err := h.bookingService.ConfirmDetails(e.Request.Context(), e.Auth.Id, draftID, &details)
	if err != nil {
		return bookingError(err)
	}

	return e.JSON(http.StatusOK, draft)
}

// SubmitPayment - Charge the selected method and issue the ticket
func (h *BookingHandler) SubmitPayment(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	draftID := e.Request.PathValue("bookingId")

	var req struct {
		Method string              `json:"method"`
		Card   *models.CardDetails `json:"card"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}
	if req.Method == "" {
		req.Method = models.PaymentMethodCard
	}

	draft, err := h.bookingService.SubmitPayment(e.Request.Context(), e.Auth.Id, draftID, req.Method, req.Card)
	if err != nil {
		return bookingError(err)
	}

	return e.JSON(http.StatusOK, draft)
}

// Back - Return a draft from the payment step to the details step
func (h *BookingHandler) Back(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	draftID := e.Request.PathValue("bookingId")

	draft, err := h.bookingService.Back(e.Request.Context(), e.Auth.Id, draftID)
	if err != nil {
		return bookingError(err)
	}

	return e.JSON(http.StatusOK, draft)
}

// History - List the user's past bookings with event details
func (h *BookingHandler) History(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	limit, _ := strconv.Atoi(e.Request.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(e.Request.URL.Query().Get("offset"))

	rows, err := h.bookingService.History(e.Request.Context(), e.Auth.Id, limit, offset)
	if err != nil {
		return apis.NewBadRequestError("Failed to load history", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"bookings": rows,
		"count":    len(rows),
	})
}

// Tickets - List the user's ticket records
func (h *BookingHandler) Tickets(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	limit, _ := strconv.Atoi(e.Request.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(e.Request.URL.Query().Get("offset"))

	tickets, err := h.bookingService.Tickets(e.Request.Context(), e.Auth.Id, limit, offset)
	if err != nil {
		return apis.NewBadRequestError("Failed to load tickets", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"tickets": tickets,
		"count":   len(tickets),
	})
}

// bookingError translates workflow errors into API errors.
func bookingError(err error) error {
	switch {
	case errors.Is(err, status.ErrDraftNotFound):
		return apis.NewNotFoundError("Booking not found", nil)

	case errors.Is(err, status.ErrEventNotActive):
		return apis.NewApiError(http.StatusConflict, "Event is not open for booking", nil)

	case errors.Is(err, status.ErrInvalidTransition):
		return apis.NewBadRequestError("Invalid booking state for this action", err)

	case errors.Is(err, status.ErrAttemptInFlight):
		return apis.NewApiError(http.StatusConflict, "A payment attempt is already in progress", nil)

	case errors.Is(err, status.ErrPaymentDeclined):
		return apis.NewApiError(http.StatusPaymentRequired, "Payment was declined", nil)

	case errors.Is(err, status.ErrPaymentUnavailable):
		return apis.NewApiError(http.StatusServiceUnavailable, "Payment service is unavailable, try again later", nil)

	case errors.Is(err, status.ErrTicketsSoldOut):
		return apis.NewApiError(http.StatusConflict, "Event is sold out", nil)

	case errors.Is(err, status.ErrInsufficientCredits):
		return apis.NewApiError(http.StatusPaymentRequired, "Not enough credits", nil)

	case errors.Is(err, status.ErrIssuance):
		return apis.NewApiError(http.StatusInternalServerError, "Ticket issuance failed, the charge was reversed", nil)

	default:
		return apis.NewBadRequestError(err.Error(), nil)
	}
}
