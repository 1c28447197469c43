package main

import (
	"github.com/gavinc318-ctrl/Nexora-graprag/internal/server"
	"github.com/gavinc318-ctrl/Nexora-graprag/internal/util"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/logger"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
