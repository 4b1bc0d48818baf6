package payments

import (
	"context"

	"ticket-marketplace/internal/status"
)

// Provider represents different payment processor types
type Provider string

const (
	ProviderStripePay Provider = "stripepay"
	ProviderMockPay   Provider = "mockpay"
)

// Processor defines the common interface for all payment processors
type Processor interface {
	// GetProvider returns the processor provider type
	GetProvider() Provider

	// Authorize performs a one-off card charge
	Authorize(ctx context.Context, form *status.ChargeForm) (*status.ChargeResult, error)

	// Refund reverses a previously authorized charge
	Refund(ctx context.Context, chargeID string) error

	// CreateSession opens a hosted checkout session for a credit purchase
	CreateSession(ctx context.Context, form *status.SessionForm) (*status.SessionState, error)

	// CheckSession fetches the current state of a checkout session
	CheckSession(ctx context.Context, sessionID string) (*status.SessionState, error)

	// SetTransactionChannel sets the channel for receiving transaction notifications
	SetTransactionChannel(ch chan *status.Transaction)

	// Close gracefully closes any connections
	Close(ctx context.Context) error
}
