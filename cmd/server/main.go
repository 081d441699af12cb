package main

import (
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ipchat/internal/logging"
	"ipchat/internal/metrics"
	"ipchat/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()

	cfg, err := server.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	server.SetConfig(cfg)
	server.SetLogger(logger)
	metrics.MustRegister()

	server.StartHub()
	httpServer := server.CreateServer(cfg.Port, server.SetupRoutes())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	}

	if err := server.ShutdownServer(httpServer, 10*time.Second); err != nil {
		logger.Warn().Err(err).Msg("http shutdown incomplete")
	}
	if err := server.GetHub().Shutdown(5 * time.Second); err != nil {
		logger.Warn().Err(err).Msg("hub shutdown incomplete")
	}
}
