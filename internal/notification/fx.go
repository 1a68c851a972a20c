package notification

import (
	"context"

	"github.com/kraalmart/kraalmart/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("notification",
	fx.Provide(provideDispatcher),
)

func provideDispatcher(lc fx.Lifecycle, log *zap.Logger, provider email.Provider) Dispatcher {
	d := NewDispatcher(log, provider)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			d.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return d.Stop(ctx)
		},
	})
	return d
}
