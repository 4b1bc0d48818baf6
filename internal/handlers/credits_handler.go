package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-marketplace/internal/services"
	"ticket-marketplace/internal/services/payments/mockpay"
	"ticket-marketplace/internal/status"
	"ticket-marketplace/models"
	"ticket-marketplace/utils"
)

type CreditsHandler struct {
	app           *pocketbase.PocketBase
	creditService *services.CreditService

	// mockPay and simulateSecretHash enable the development-only payment
	// simulation endpoint. Both are empty in production.
	mockPay            *mockpay.Client
	simulateSecretHash string
}

func NewCreditsHandler(app *pocketbase.PocketBase, creditService *services.CreditService) *CreditsHandler {
	return &CreditsHandler{
		app:           app,
		creditService: creditService,
	}
}

// EnableSimulation wires the dev-only simulate endpoint against the
// in-memory processor.
func (h *CreditsHandler) EnableSimulation(mockPay *mockpay.Client, secretHash string) {
	h.mockPay = mockPay
	h.simulateSecretHash = secretHash
}

// ListPacks - List purchasable credit packs
func (h *CreditsHandler) ListPacks(e *core.RequestEvent) error {
	return e.JSON(http.StatusOK, map[string]any{
		"packs": models.ListCreditPacks(),
	})
}

// Purchase - Open a checkout session for a credit pack
func (h *CreditsHandler) Purchase(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		PackID string `json:"pack_id"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}
	if req.PackID == "" {
		return apis.NewBadRequestError("pack_id is required", nil)
	}

	session, err := h.creditService.InitiatePurchase(e.Request.Context(), e.Auth.Id, req.PackID)
	if err != nil {
		return creditsError(err)
	}

	return e.JSON(http.StatusCreated, session)
}

// Status - Single poll of a checkout session's state
func (h *CreditsHandler) Status(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	sessionID := e.Request.PathValue("sessionId")

	result, err := h.creditService.Status(e.Request.Context(), e.Auth.Id, sessionID)
	if err != nil {
		return creditsError(err)
	}

	return e.JSON(http.StatusOK, result)
}

// Confirm - Reconcile a checkout session by polling the processor. Blocks
// until the purchase settles or the attempt budget runs out; closing the
// request cancels the wait.
func (h *CreditsHandler) Confirm(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	sessionID := e.Request.PathValue("sessionId")

	result, err := h.creditService.Confirm(e.Request.Context(), e.Auth.Id, sessionID)
	if err != nil {
		return creditsError(err)
	}

	return e.JSON(http.StatusOK, result)
}

// Balance - The user's current credit balance
func (h *CreditsHandler) Balance(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	balance, err := h.creditService.Balance(e.Request.Context(), e.Auth.Id)
	if err != nil {
		return apis.NewBadRequestError("Failed to load balance", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"user_id": e.Auth.Id,
		"balance": balance,
	})
}

// SimulatePayment - Drive a mock checkout session to a terminal state.
// Guarded by a shared secret and only routed in development.
func (h *CreditsHandler) SimulatePayment(e *core.RequestEvent) error {
	if h.mockPay == nil {
		return apis.NewNotFoundError("Not found", nil)
	}

	var req struct {
		Secret    string `json:"secret"`
		SessionID string `json:"session_id"`
		Outcome   string `json:"outcome"` // paid, expired
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}

	if !utils.CompareSecret(h.simulateSecretHash, req.Secret) {
		return apis.NewForbiddenError("Access denied", nil)
	}

	var err error
	switch req.Outcome {
	case "paid":
		err = h.mockPay.MarkPaid(req.SessionID)
	case "expired":
		err = h.mockPay.MarkExpired(req.SessionID)
	default:
		return apis.NewBadRequestError("outcome must be paid or expired", nil)
	}
	if err != nil {
		return creditsError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"session_id": req.SessionID,
		"outcome":    req.Outcome,
	})
}

// creditsError translates reconciliation errors into API errors.
func creditsError(err error) error {
	switch {
	case errors.Is(err, status.ErrSessionNotFound):
		return apis.NewNotFoundError("Checkout session not found", nil)

	case errors.Is(err, status.ErrPurchaseNotFound):
		return apis.NewNotFoundError("Credit purchase not found", nil)

	default:
		return apis.NewBadRequestError(err.Error(), nil)
	}
}
