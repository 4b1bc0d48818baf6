// Package mockpay is an in-memory payment processor used in development
// and tests. It approves any card except a fixed decline number and lets
// callers drive checkout session outcomes by hand.
package mockpay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ticket-marketplace/internal/status"
)

// DeclineCardNumber always declines, mirroring common processor test cards.
const DeclineCardNumber = "4000000000000002"

type Client struct {
	mu sync.Mutex

	charges  map[string]*status.ChargeResult
	sessions map[string]*status.SessionState
	refunds  map[string]bool

	tranCh chan *status.Transaction

	chargeSeq  int
	sessionSeq int
}

func New() *Client {
	return &Client{
		charges:  make(map[string]*status.ChargeResult),
		sessions: make(map[string]*status.SessionState),
		refunds:  make(map[string]bool),
	}
}

func (c *Client) Authorize(_ context.Context, form *status.ChargeForm) (*status.ChargeResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.chargeSeq++
	result := &status.ChargeResult{
		ChargeID: fmt.Sprintf("ch_mock_%06d", c.chargeSeq),
		Status:   "succeeded",
	}
	if form.CardNumber == DeclineCardNumber {
		result.Status = "declined"
	}

	c.charges[result.ChargeID] = result
	return result, nil
}

func (c *Client) Refund(_ context.Context, chargeID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.charges[chargeID]; !ok {
		return fmt.Errorf("mockpay: refund: unknown charge %s", chargeID)
	}

	c.refunds[chargeID] = true
	return nil
}

// Refunded reports whether a charge has been refunded.
func (c *Client) Refunded(chargeID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refunds[chargeID]
}

func (c *Client) CreateSession(_ context.Context, form *status.SessionForm) (*status.SessionState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sessionSeq++
	sess := &status.SessionState{
		SessionID:     fmt.Sprintf("sess_mock_%06d", c.sessionSeq),
		CheckoutURL:   fmt.Sprintf("https://checkout.mockpay.local/%06d", c.sessionSeq),
		Status:        "open",
		PaymentStatus: "pending",
		Amount:        form.Amount,
		Currency:      form.Currency,
	}

	c.sessions[sess.SessionID] = sess
	return sess, nil
}

func (c *Client) CheckSession(_ context.Context, sessionID string) (*status.SessionState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[sessionID]
	if !ok {
		return nil, status.ErrSessionNotFound
	}

	cp := *sess
	return &cp, nil
}

// MarkPaid settles a session and emits a transaction notification if a
// channel is attached.
func (c *Client) MarkPaid(sessionID string) error {
	c.mu.Lock()
	sess, ok := c.sessions[sessionID]
	if !ok {
		c.mu.Unlock()
		return status.ErrSessionNotFound
	}
	sess.Status = "complete"
	sess.PaymentStatus = "paid"
	tranCh := c.tranCh
	tran := &status.Transaction{
		SessionID: sess.SessionID,
		Status:    "paid",
		Amount:    sess.Amount,
		Currency:  sess.Currency,
		CreatedAt: time.Now(),
	}
	c.mu.Unlock()

	if tranCh != nil {
		tranCh <- tran
	}
	return nil
}

// MarkExpired expires a session without payment.
func (c *Client) MarkExpired(sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[sessionID]
	if !ok {
		return status.ErrSessionNotFound
	}
	sess.Status = "expired"
	return nil
}

// SetSessionStatus overrides a session's raw status fields.
func (c *Client) SetSessionStatus(sessionID, sessStatus, paymentStatus string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[sessionID]
	if !ok {
		return status.ErrSessionNotFound
	}
	sess.Status = sessStatus
	sess.PaymentStatus = paymentStatus
	return nil
}

// AddSession registers a pre-built session, mostly from tests.
func (c *Client) AddSession(sessionID string, amount decimal.Decimal, currency string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sessions[sessionID] = &status.SessionState{
		SessionID:     sessionID,
		Status:        "open",
		PaymentStatus: "pending",
		Amount:        amount,
		Currency:      currency,
	}
}

func (c *Client) SetTranChannel(ch chan *status.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tranCh = ch
}

func (c *Client) Close(_ context.Context) error {
	return nil
}
