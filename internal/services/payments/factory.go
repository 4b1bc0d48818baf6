package payments

import (
	"context"
	"fmt"

	"ticket-marketplace/internal/services/payments/mockpay"
	"ticket-marketplace/internal/services/payments/stripepay"
)

// Factory creates processor instances based on provider type
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

// CreateProcessor creates a processor instance based on provider type and configuration
func (f *Factory) CreateProcessor(ctx context.Context, provider Provider, config interface{}) (Processor, error) {
	switch provider {
	case ProviderStripePay:
		spConfig, ok := config.(*stripepay.Config)
		if !ok {
			return nil, fmt.Errorf("invalid stripepay config type, expected *stripepay.Config")
		}
		client, err := stripepay.New(ctx, spConfig)
		if err != nil {
			return nil, fmt.Errorf("create stripepay client: %w", err)
		}
		return &stripePayAdapter{client: client}, nil

	case ProviderMockPay:
		return NewMockPayAdapter(mockpay.New()), nil

	default:
		return nil, fmt.Errorf("unsupported payment provider: %s", provider)
	}
}

// GetSupportedProviders returns list of supported payment providers
func (f *Factory) GetSupportedProviders() []Provider {
	return []Provider{
		ProviderStripePay,
		ProviderMockPay,
	}
}
