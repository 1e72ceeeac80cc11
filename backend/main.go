package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"patchpilot/backend/global"
	"patchpilot/backend/initialize"
	"patchpilot/backend/server"

	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.StringP("config", "c", "config.yaml", "path to the backend config file")
	logLevel := pflag.String("log-level", "info", "log level (debug, info, warn, error)")
	pflag.Parse()

	initialize.SetLevel(*logLevel)

	app, err := initialize.Build(*configPath)
	if err != nil {
		global.Logger.Fatal().Err(err).Msg("init failed")
	}
	defer func() { _ = app.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.Start(ctx)
	srv := server.NewHTTPServer(app.Cfg.HTTP.Host, app.Cfg.HTTP.Port, app.Router)
	if err := srv.Run(ctx); err != nil {
		global.Logger.Error().Err(err).Msg("http server stopped")
		os.Exit(1)
	}
}
