package payment

import (
	"github.com/kraalmart/kraalmart/internal/config"
	"github.com/kraalmart/kraalmart/internal/payment/adapters"
	"github.com/kraalmart/kraalmart/internal/payment/adapters/paystack"
	"github.com/kraalmart/kraalmart/internal/payment/repository"
	"github.com/kraalmart/kraalmart/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment",
	fx.Provide(providePaystack),
	fx.Provide(adapters.NewRegistry),
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)

func providePaystack(cfg config.Config) *paystack.Adapter {
	return paystack.New(cfg.Paystack)
}
