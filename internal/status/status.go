package status

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// Booking workflow errors.
	ErrDraftNotFound       = errors.New("booking: draft not found or expired")
	ErrEventNotActive      = errors.New("booking: event is not open for booking")
	ErrInvalidTransition   = errors.New("booking: transition not allowed from current state")
	ErrAttemptInFlight     = errors.New("booking: a submission is already being processed")
	ErrPaymentDeclined     = errors.New("payment: card declined")
	ErrPaymentUnavailable  = errors.New("payment: processor unavailable")
	ErrTicketsSoldOut      = errors.New("issuance: no tickets available")
	ErrIssuance            = errors.New("issuance: ticket could not be created")
	ErrInsufficientCredits = errors.New("credits: insufficient balance")

	// Reconciliation errors.
	ErrSessionNotFound  = errors.New("session: payment session not found")
	ErrPurchaseNotFound = errors.New("credits: purchase not found")
)

// Transaction is a payment notification pushed by the processor.
type Transaction struct {
	SessionID string          `json:"session_id"`
	Reference string          `json:"reference"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Payer     string          `json:"payer"`
	CreatedAt time.Time       `json:"created_at"`
}
