package status

import (
	"github.com/shopspring/decimal"
)

// ChargeForm is a one-off card authorization request sent to the processor.
type ChargeForm struct {
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	CardNumber string          `json:"card_number"`
	Expiry     string          `json:"expiry"` // MM/YY
	CVV        string          `json:"cvv"`
	HolderName string          `json:"holder_name"`
	Reference  string          `json:"reference"`
}

// ChargeResult is the processor's answer to a ChargeForm.
type ChargeResult struct {
	ChargeID string `json:"charge_id"`
	Status   string `json:"status"` // succeeded, declined
}

func (r *ChargeResult) Succeeded() bool {
	return r.Status == "succeeded"
}

// SessionForm requests a hosted checkout session from the processor.
type SessionForm struct {
	Amount     decimal.Decimal   `json:"amount"`
	Currency   string            `json:"currency"`
	Reference  string            `json:"reference"`
	SuccessURL string            `json:"success_url"`
	CancelURL  string            `json:"cancel_url"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// SessionState is the processor-side view of a checkout session.
type SessionState struct {
	SessionID     string          `json:"session_id"`
	CheckoutURL   string          `json:"checkout_url,omitempty"`
	Status        string          `json:"status"`         // open, complete, expired
	PaymentStatus string          `json:"payment_status"` // pending, paid, failed
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
}

func (s *SessionState) Paid() bool {
	return s.PaymentStatus == "paid"
}

func (s *SessionState) Expired() bool {
	return s.Status == "expired"
}
