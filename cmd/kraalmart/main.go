package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/kraalmart/kraalmart/internal/clock"
	"github.com/kraalmart/kraalmart/internal/config"
	"github.com/kraalmart/kraalmart/internal/migration"
	"github.com/kraalmart/kraalmart/internal/observability"
	"github.com/kraalmart/kraalmart/internal/scheduler"
	"github.com/kraalmart/kraalmart/internal/seed"
	"github.com/kraalmart/kraalmart/internal/server"
	"github.com/kraalmart/kraalmart/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(newSnowflakeNode),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
		scheduler.Module,
		fx.Invoke(seedDev),
	)
	app.Run()
}

// newSnowflakeNode builds the process-wide ID generator. The node id must
// be unique per instance when running more than one replica.
func newSnowflakeNode(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNodeID)
}

func seedDev(cfg config.Config, conn *gorm.DB, node *snowflake.Node) error {
	if cfg.Environment != "development" {
		return nil
	}
	return seed.EnsureDefaultFeeConfig(conn, node)
}
