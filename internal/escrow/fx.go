package escrow

import (
	"github.com/kraalmart/kraalmart/internal/escrow/repository"
	"github.com/kraalmart/kraalmart/internal/escrow/service"
	"go.uber.org/fx"
)

var Module = fx.Module("escrow.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
