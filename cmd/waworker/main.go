// Package main is the WhatsApp instance worker entrypoint: it discovers
// which sessions it should run from the edge control plane, connects them,
// relays inbound events and drains outbound queues, and exits cleanly on
// SIGTERM/SIGINT.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"waworker/internal/app"
	"waworker/internal/app/config"
	"waworker/internal/app/server"
	"waworker/internal/http/router"
	"waworker/internal/journal"
	"waworker/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	log := logger.Setup(cfg).WithComponent("main")

	log.WithFields(map[string]interface{}{
		"env":  cfg.App.Env,
		"port": cfg.App.Port,
	}).Info().Msg("starting waworker")

	ctx := context.Background()

	j, err := journal.New(ctx, cfg.Journal.DSN, log)
	if err != nil {
		log.WithError(err).Fatal().Msg("failed to open diagnostics journal")
	}
	if j != nil {
		log.Info().Msg("diagnostics journal enabled")
	}

	container := app.NewContainer(ctx, cfg, j, log)

	handler := router.New(cfg, log, container.HealthHandler)
	srv := server.New(cfg, handler, log)

	container.Start(ctx)
	log.Info().Msg("instance manager discovery cycle started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil {
			log.WithError(err).Fatal().Msg("failed to start server")
		}
	}()

	log.Info().Msg("waworker started successfully")

	<-stop
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
	defer cancel()

	container.Shutdown(shutdownCtx)

	if err := srv.Stop(shutdownCtx); err != nil {
		log.WithError(err).Error().Msg("error during server shutdown")
	}

	log.Info().Msg("waworker stopped")
}
