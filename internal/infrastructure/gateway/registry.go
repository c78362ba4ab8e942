package gateway

import (
	"errors"
	"fmt"

	"github.com/DanielPopoola/chargecore/internal/application"
	"github.com/DanielPopoola/chargecore/internal/config"
	"github.com/DanielPopoola/chargecore/internal/domain"
	"github.com/DanielPopoola/chargecore/internal/infrastructure/gateway/epdq"
	"github.com/DanielPopoola/chargecore/internal/infrastructure/gateway/sandbox"
	"github.com/DanielPopoola/chargecore/internal/infrastructure/gateway/stripe"
	"github.com/DanielPopoola/chargecore/internal/infrastructure/gateway/transport"
	"github.com/DanielPopoola/chargecore/internal/infrastructure/gateway/worldpay"
)

var ErrUnknownProvider = errors.New("unknown payment provider")

var (
	_ application.TransactionIDGenerator = (*worldpay.Adapter)(nil)
	_ application.TransactionIDGenerator = (*epdq.Adapter)(nil)
	_ application.TransactionIDGenerator = (*sandbox.Adapter)(nil)
	_ application.GatewayAdapter         = (*stripe.Adapter)(nil)
)

// Registry resolves the adapter and notification parser registered for a provider.
type Registry struct {
	adapters map[domain.Provider]application.GatewayAdapter
	parsers  map[domain.Provider]application.NotificationParser
}

func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[domain.Provider]application.GatewayAdapter),
		parsers:  make(map[domain.Provider]application.NotificationParser),
	}
}

// NewFromConfig registers every provider with a configured base URL. The sandbox is
// registered only when enabled.
func NewFromConfig(gw config.GatewayConfig, notifications config.NotificationsConfig) (*Registry, error) {
	r := NewRegistry()

	if gw.WorldpayURL != "" {
		parser, err := worldpay.NewNotificationParser(notifications.WorldpayCIDRs)
		if err != nil {
			return nil, err
		}
		client := transport.New(domain.ProviderWorldpay, gw.WorldpayURL, gw.ConnectTimeout)
		r.Register(worldpay.NewAdapter(client), parser)
	}
	if gw.EPDQURL != "" {
		client := transport.New(domain.ProviderEPDQ, gw.EPDQURL, gw.ConnectTimeout)
		r.Register(epdq.NewAdapter(client), epdq.NewNotificationParser())
	}
	if gw.StripeURL != "" {
		client := transport.New(domain.ProviderStripe, gw.StripeURL, gw.ConnectTimeout)
		r.Register(stripe.NewAdapter(client), stripe.NewWebhookParser())
	}
	if gw.SandboxEnabled {
		r.Register(sandbox.NewAdapter(), sandbox.NewNotificationParser())
	}

	return r, nil
}

func (r *Registry) Register(adapter application.GatewayAdapter, parser application.NotificationParser) {
	r.adapters[adapter.Provider()] = adapter
	if parser != nil {
		r.parsers[parser.Provider()] = parser
	}
}

func (r *Registry) Adapter(provider domain.Provider) (application.GatewayAdapter, error) {
	adapter, ok := r.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	return adapter, nil
}

func (r *Registry) NotificationParser(provider domain.Provider) (application.NotificationParser, error) {
	parser, ok := r.parsers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	return parser, nil
}

// Providers lists the registered providers.
func (r *Registry) Providers() []domain.Provider {
	out := make([]domain.Provider, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	return out
}
