package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nyxtrade/momentum-trader/internal/app"
	"github.com/nyxtrade/momentum-trader/internal/config"
	"github.com/nyxtrade/momentum-trader/internal/statusapi"
	"github.com/nyxtrade/momentum-trader/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New(logger.Config{Level: "info", Pretty: true})
		log.Fatal().Err(err).Msg("failed to load configuration")
		return
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true})
	logger.SetGlobalLogger(log)

	log.Info().Msg("starting momentum trading platform")

	application, err := app.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build application")
		return
	}
	defer func() {
		if err := application.Shutdown(); err != nil {
			log.Error().Err(err).Msg("error closing journal store")
		}
	}()

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- application.Run(runCtx)
	}()

	httpServer := statusapi.New(statusapi.Config{Port: cfg.Port}, application, log)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil {
			log.Error().Err(err).Msg("status api server failed")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("momentum trading platform started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	schedulerAlreadyExited := false
	select {
	case <-quit:
		log.Info().Msg("shutdown signal received")
	case err := <-runErrCh:
		schedulerAlreadyExited = true
		if err != nil {
			log.Error().Err(err).Msg("scheduler run loop exited unexpectedly")
		}
	}

	cancelRun()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("status api server forced to shutdown")
	}

	if !schedulerAlreadyExited {
		select {
		case <-runErrCh:
		case <-time.After(5 * time.Second):
			log.Warn().Msg("scheduler did not exit within shutdown window")
		}
	}

	log.Info().Msg("momentum trading platform stopped")
}
