package feeconfig

import (
	"github.com/kraalmart/kraalmart/internal/feeconfig/repository"
	"github.com/kraalmart/kraalmart/internal/feeconfig/service"
	"go.uber.org/fx"
)

var Module = fx.Module("feeconfig.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
