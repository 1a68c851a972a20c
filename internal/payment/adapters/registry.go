// Package adapters holds the gateway registry. One gateway per provider
// name; paystack is the default for outbound charges.
package adapters

import (
	"github.com/kraalmart/kraalmart/internal/payment/adapters/paystack"
	"github.com/kraalmart/kraalmart/internal/payment/domain"
)

type Registry struct {
	gateways map[string]domain.Gateway
	fallback domain.Gateway
}

func NewRegistry(primary *paystack.Adapter) *Registry {
	r := &Registry{gateways: map[string]domain.Gateway{}}
	r.register(primary)
	r.fallback = primary
	return r
}

func (r *Registry) register(gateway domain.Gateway) {
	r.gateways[gateway.Name()] = gateway
}

func (r *Registry) Get(name string) (domain.Gateway, bool) {
	gateway, ok := r.gateways[name]
	return gateway, ok
}

// Default is the gateway used to initialize new transactions.
func (r *Registry) Default() domain.Gateway {
	return r.fallback
}
