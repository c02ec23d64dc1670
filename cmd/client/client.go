package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"depthsim/internal/app"
	"depthsim/internal/book"
	"depthsim/internal/config"
	"depthsim/internal/logging"
	"depthsim/internal/metrics"
	enginenet "depthsim/internal/net"
	"depthsim/internal/render"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type flags struct {
	engine   string
	readAck  bool
	seed     int64
	interval time.Duration
	frame    time.Duration
	wsAddr   string
	metrics  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	var f flags
	var cfg config.Config

	root := &cobra.Command{
		Use:           "client",
		Short:         "Synthetic order flow for a line protocol matching engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			applyFlags(cmd, &loaded, f)
			logging.Setup(loaded.Logging.Level, loaded.Logging.Pretty)
			cfg = loaded
			return cfg.Validate()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.engine, "engine", enginenet.DefaultEngineAddr, "Address of the matching engine")
	pf.BoolVar(&f.readAck, "read-ack", false, "Read and log the engine reply for every order")
	pf.Int64Var(&f.seed, "seed", 0, "Random seed (0 seeds from the clock)")
	pf.StringVar(&f.metrics, "metrics", "", "Serve Prometheus metrics on this address")
	pf.StringVar(&f.logLevel, "log-level", "info", "Log level")

	visualize := &cobra.Command{
		Use:   "visualize",
		Short: "Generate orders continuously and draw the live depth chart",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runVisualize(cmd.Context(), cfg)
		},
	}
	visualize.Flags().DurationVar(&f.interval, "interval", 100*time.Millisecond, "Pause between orders")
	visualize.Flags().DurationVar(&f.frame, "frame", 200*time.Millisecond, "Redraw interval")
	visualize.Flags().StringVar(&f.wsAddr, "ws", "", "Also stream depth frames over websocket on this address")

	script := &cobra.Command{
		Use:   "script",
		Short: "Send the fixed opening orders followed by 20 random ones",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScript(cmd.Context(), cfg)
		},
	}

	root.AddCommand(visualize, script)
	return root
}

// applyFlags lets explicitly set flags win over the config file and env.
func applyFlags(cmd *cobra.Command, cfg *config.Config, f flags) {
	changed := func(name string) bool {
		fl := cmd.Flags().Lookup(name)
		return fl != nil && fl.Changed
	}
	if changed("engine") {
		cfg.Engine.Addr = f.engine
	}
	if changed("read-ack") {
		cfg.Engine.ReadAck = f.readAck
	}
	if changed("seed") {
		cfg.Generator.Seed = f.seed
	}
	if changed("metrics") {
		cfg.Metrics.Addr = f.metrics
	}
	if changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if changed("interval") {
		cfg.Generator.Interval = f.interval
	}
	if changed("frame") {
		cfg.Render.Interval = f.frame
	}
	if changed("ws") {
		cfg.Render.WSAddr = f.wsAddr
	}
}

func newSender(cfg config.Config) *enginenet.Sender {
	return enginenet.NewSender(enginenet.SenderConfig{
		Addr:        cfg.Engine.Addr,
		DialTimeout: cfg.Engine.DialTimeout,
		IOTimeout:   cfg.Engine.IOTimeout,
		ReadAck:     cfg.Engine.ReadAck,
		AckSize:     cfg.Engine.AckSize,
	})
}

func serveMetrics(cfg config.Config) {
	reg := metrics.Init()
	go func() {
		if err := metrics.Serve(cfg.Metrics.Addr, reg); err != nil {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func runVisualize(parent context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	serveMetrics(cfg)

	sinks := render.MultiSink{render.NewTerminalSink(os.Stdout, render.WithWidth(cfg.Render.Width))}
	if cfg.Render.WSAddr != "" {
		ws := render.NewWebSocketSink()
		defer ws.Close()
		go func() {
			if err := ws.Serve(cfg.Render.WSAddr); err != nil {
				log.Error().Err(err).Msg("websocket server failed")
			}
		}()
		sinks = append(sinks, ws)
	}

	sender := newSender(cfg)
	log.Info().Str("engine", sender.Addr()).Bool("read_ack", cfg.Engine.ReadAck).Msg("running visualizer")

	v := app.New(cfg, sender, sinks)
	v.Start(ctx)
	return v.Wait()
}

func runScript(parent context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	serveMetrics(cfg)

	sender := scriptSender(cfg)
	log.Info().Str("engine", sender.Addr()).Msg("running script")

	script := app.DefaultScript()
	script.Seed = cfg.Generator.Seed
	_, err := app.RunScript(ctx, sender, book.New(), script)
	return err
}

// scriptSender always reads the engine reply so every send can log it.
func scriptSender(cfg config.Config) *enginenet.Sender {
	cfg.Engine.ReadAck = true
	return newSender(cfg)
}
