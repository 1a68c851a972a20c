package audit

import (
	"github.com/kraalmart/kraalmart/internal/audit/repository"
	"github.com/kraalmart/kraalmart/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
