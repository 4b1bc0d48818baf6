package payments

import (
	"context"

	"ticket-marketplace/internal/services/payments/mockpay"
	"ticket-marketplace/internal/services/payments/stripepay"
	"ticket-marketplace/internal/status"
)

// stripePayAdapter wraps the stripepay client to conform to Processor
type stripePayAdapter struct {
	client *stripepay.Client
}

func (a *stripePayAdapter) GetProvider() Provider {
	return ProviderStripePay
}

func (a *stripePayAdapter) Authorize(ctx context.Context, form *status.ChargeForm) (*status.ChargeResult, error) {
	return a.client.Authorize(ctx, form)
}

func (a *stripePayAdapter) Refund(ctx context.Context, chargeID string) error {
	return a.client.Refund(ctx, chargeID)
}

func (a *stripePayAdapter) CreateSession(ctx context.Context, form *status.SessionForm) (*status.SessionState, error) {
	return a.client.CreateSession(ctx, form)
}

func (a *stripePayAdapter) CheckSession(ctx context.Context, sessionID string) (*status.SessionState, error) {
	return a.client.CheckSession(ctx, sessionID)
}

func (a *stripePayAdapter) SetTransactionChannel(ch chan *status.Transaction) {
	a.client.SetTranChannel(ch)
}

func (a *stripePayAdapter) Close(ctx context.Context) error {
	return a.client.Close(ctx)
}

// MockPayAdapter wraps the in-memory mockpay client to conform to Processor.
// Exported so development wiring can keep a handle on the underlying client
// for the simulate endpoint.
type MockPayAdapter struct {
	client *mockpay.Client
}

func NewMockPayAdapter(client *mockpay.Client) *MockPayAdapter {
	return &MockPayAdapter{client: client}
}

// Underlying returns the wrapped mockpay client.
func (a *MockPayAdapter) Underlying() *mockpay.Client {
	return a.client
}

func (a *MockPayAdapter) GetProvider() Provider {
	return ProviderMockPay
}

func (a *MockPayAdapter) Authorize(ctx context.Context, form *status.ChargeForm) (*status.ChargeResult, error) {
	return a.client.Authorize(ctx, form)
}

func (a *MockPayAdapter) Refund(ctx context.Context, chargeID string) error {
	return a.client.Refund(ctx, chargeID)
}

func (a *MockPayAdapter) CreateSession(ctx context.Context, form *status.SessionForm) (*status.SessionState, error) {
	return a.client.CreateSession(ctx, form)
}

func (a *MockPayAdapter) CheckSession(ctx context.Context, sessionID string) (*status.SessionState, error) {
	return a.client.CheckSession(ctx, sessionID)
}

func (a *MockPayAdapter) SetTransactionChannel(ch chan *status.Transaction) {
	a.client.SetTranChannel(ch)
}

func (a *MockPayAdapter) Close(ctx context.Context) error {
	return a.client.Close(ctx)
}
