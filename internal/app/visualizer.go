// Package app wires the order generator and the renderer around one shared
// depth view and owns their lifecycle.
package app

import (
	"context"
	"errors"

	"depthsim/internal/book"
	"depthsim/internal/config"
	"depthsim/internal/generator"
	"depthsim/internal/render"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

var ErrNotStarted = errors.New("visualizer not started")

type Visualizer struct {
	runID    string
	depth    *book.Depth
	trader   *generator.Trader
	renderer *render.Renderer
	t        *tomb.Tomb
}

func New(cfg config.Config, tx generator.Transmitter, sink render.Sink) *Visualizer {
	depth := book.New()
	gen := generator.New(cfg.Generator.Ranges, cfg.Generator.Seed)
	return &Visualizer{
		runID: uuid.New().String(),
		depth: depth,
		trader: generator.NewTrader(gen, depth, tx, generator.TraderConfig{
			Interval: cfg.Generator.Interval,
			Cooldown: cfg.Generator.Cooldown,
		}),
		renderer: render.New(depth, sink, cfg.Render.Interval),
	}
}

func (v *Visualizer) Depth() *book.Depth { return v.depth }

// Start launches the trader and the renderer. Cancelling ctx stops both.
func (v *Visualizer) Start(ctx context.Context) {
	v.t, _ = tomb.WithContext(ctx)
	log.Info().Str("run", v.runID).Msg("visualizer starting")

	v.t.Go(func() error {
		return v.trader.Run(v.t)
	})
	v.t.Go(func() error {
		return v.renderer.Run(v.t)
	})
}

// Stop signals both loops and waits for them.
func (v *Visualizer) Stop() error {
	if v.t == nil {
		return ErrNotStarted
	}
	v.t.Kill(nil)
	return v.Wait()
}

// Wait blocks until both loops have exited and returns the first real failure,
// typically a renderer sink error.
func (v *Visualizer) Wait() error {
	if v.t == nil {
		return ErrNotStarted
	}
	err := v.t.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Info().Str("run", v.runID).Err(err).Msg("visualizer stopped")
	return err
}
