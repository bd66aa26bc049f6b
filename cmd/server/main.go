package main

import (
	"github.com/peakfunnel/intentgraph/internal/server"
	"github.com/peakfunnel/intentgraph/internal/util"
	"github.com/peakfunnel/intentgraph/pkg/logger"
	"github.com/peakfunnel/intentgraph/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.New(console.Params{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
