package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"depthsim/internal/config"
	"depthsim/internal/engine"
	"depthsim/internal/logging"
	"depthsim/internal/metrics"
	"depthsim/internal/net"

	"github.com/rs/zerolog/log"
)

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	cfg, err := config.Load()
	logging.Setup(cfg.Logging.Level, cfg.Logging.Pretty)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load config")
	}

	reg := metrics.Init()
	go func() {
		if err := metrics.Serve(cfg.Metrics.Addr, reg); err != nil {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	// Setup the TCP server and the matching engine.
	eng := engine.New()
	srv := net.NewWithWorkers(cfg.Server.Address, cfg.Server.Port, eng, cfg.Server.Workers)

	// Block on running the server.
	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
}
