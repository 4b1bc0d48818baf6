package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Processor-side payment status of a checkout session.
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
	PaymentStatusExpired = "expired"
)

// Application-side purchase status of a credit purchase.
const (
	PurchaseStatusPending   = "pending"
	PurchaseStatusCompleted = "completed"
	PurchaseStatusCancelled = "cancelled"
)

// CheckoutSession is a payment session issued by the external processor.
type CheckoutSession struct {
	SessionID   string          `json:"session_id"`
	CheckoutURL string          `json:"checkout_url"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

// SessionStatus is a point-in-time view of a checkout session, combining the
// processor's payment status with the application's purchase status.
type SessionStatus struct {
	SessionID      string          `json:"session_id"`
	PaymentStatus  string          `json:"payment_status"`
	PurchaseStatus string          `json:"purchase_status"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
}

func (s *SessionStatus) Paid() bool {
	return s.PaymentStatus == PaymentStatusPaid
}

func (s *SessionStatus) Expired() bool {
	return s.PaymentStatus == PaymentStatusExpired
}

func (s *SessionStatus) Completed() bool {
	return s.Paid() && s.PurchaseStatus == PurchaseStatusCompleted
}

// CreditPurchase mirrors one credit-pack purchase through the processor.
type CreditPurchase struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"session_id"`
	UserID      string     `json:"user_id"`
	PackID      string     `json:"pack_id"`
	Amount      float64    `json:"amount"`
	Credits     int        `json:"credits"`
	Status      string     `json:"status"` // pending, completed, cancelled
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// CreditPack is a purchasable credit bundle. Packs are defined server side
// so amounts can never be tampered with from the client.
type CreditPack struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Price   decimal.Decimal `json:"price"`
	Credits int             `json:"credits"`
}

var creditPacks = map[string]CreditPack{
	"small":  {ID: "small", Name: "Small Pack", Price: decimal.NewFromInt(10), Credits: 100},
	"medium": {ID: "medium", Name: "Medium Pack", Price: decimal.NewFromInt(40), Credits: 500},
	"large":  {ID: "large", Name: "Large Pack", Price: decimal.NewFromInt(70), Credits: 1000},
}

// FindCreditPack looks up a pack by id.
func FindCreditPack(id string) (CreditPack, bool) {
	pack, ok := creditPacks[id]
	return pack, ok
}

// ListCreditPacks returns the packs in ascending price order.
func ListCreditPacks() []CreditPack {
	return []CreditPack{
		creditPacks["small"],
		creditPacks["medium"],
		creditPacks["large"],
	}
}

// ReconcileState is the terminal (or in-progress) state of the credit
// purchase reconciliation workflow.
type ReconcileState string

const (
	ReconcileChecking ReconcileState = "checking"
	ReconcileSuccess  ReconcileState = "success"
	ReconcileFailed   ReconcileState = "failed"
	ReconcileExpired  ReconcileState = "expired"
)

// ReconcileResult is what the reconciliation loop resolves to.
type ReconcileResult struct {
	State    ReconcileState  `json:"state"`
	Amount   decimal.Decimal `json:"amount"`
	Credits  int             `json:"credits"`
	Balance  int             `json:"balance"`
	Attempts int             `json:"attempts"`
}
