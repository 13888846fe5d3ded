package main

import (
	"github.com/boothworks/prizebooth/internal/adaptive"
	"github.com/boothworks/prizebooth/internal/clock"
	"github.com/boothworks/prizebooth/internal/config"
	"github.com/boothworks/prizebooth/internal/engine"
	"github.com/boothworks/prizebooth/internal/migration"
	"github.com/boothworks/prizebooth/internal/observability"
	"github.com/boothworks/prizebooth/internal/prize"
	"github.com/boothworks/prizebooth/internal/report"
	"github.com/boothworks/prizebooth/internal/server"
	"github.com/boothworks/prizebooth/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional domains
		prize.Module,
		adaptive.Module,
		engine.Module,
		report.Module,

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
