package providers

import (
	"github.com/kraalmart/kraalmart/internal/providers/email"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
)
