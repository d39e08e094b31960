package main

import (
	"context"
	"os"

	"github.com/charmbracelet/log"

	"clamor/internal/config"
	"clamor/internal/router"
	"clamor/internal/server"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "clamor",
	})

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Fatal("load config", "err", err)
	}

	runtime, err := server.New(cfg, router.DefaultChain(logger), logger)
	if err != nil {
		logger.Fatal("build ssh server", "err", err)
	}

	if err := runtime.Run(context.Background()); err != nil {
		logger.Fatal("run ssh server", "err", err)
	}
}
