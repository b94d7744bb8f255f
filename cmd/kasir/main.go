package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kasir/internal/clock"
	"github.com/smallbiznis/kasir/internal/config"
	"github.com/smallbiznis/kasir/internal/migration"
	"github.com/smallbiznis/kasir/internal/observability"
	"github.com/smallbiznis/kasir/internal/seed"
	"github.com/smallbiznis/kasir/internal/server"
	"github.com/smallbiznis/kasir/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		seed.Module,

		// HTTP + websocket surface, pulls in every domain module
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
