package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/tempora-hq/tempora/internal/clock"
	"github.com/tempora-hq/tempora/internal/config"
	"github.com/tempora-hq/tempora/internal/migration"
	"github.com/tempora-hq/tempora/internal/server"
	"github.com/tempora-hq/tempora/pkg/db"
	"github.com/tempora-hq/tempora/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
