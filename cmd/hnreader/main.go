package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/JakeFAU/hnreader/internal/config"
	"github.com/JakeFAU/hnreader/internal/logging"
	"github.com/JakeFAU/hnreader/internal/server"
)

func main() {
	cfgPath := pflag.StringP("config", "c", "", "Path to config file")
	pflag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx := context.Background()
	app, err := server.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("build application failed", zap.Error(err))
		return
	}
	if err := app.Run(ctx); err != nil {
		logger.Error("application exited with error", zap.Error(err))
	}
}
