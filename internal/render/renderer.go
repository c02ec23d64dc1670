package render

import (
	"errors"
	"fmt"
	"time"

	"depthsim/internal/book"
	"depthsim/internal/metrics"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const DefaultInterval = 200 * time.Millisecond

// Frame is what a sink draws: both sides sorted by price ascending.
type Frame struct {
	Bids []book.Level `json:"bids"`
	Asks []book.Level `json:"asks"`
	At   time.Time    `json:"-"`
	TS   int64        `json:"ts"`
}

// Sink draws a full frame, replacing whatever it drew before.
type Sink interface {
	Draw(frame Frame) error
}

// MultiSink draws to every sink, stopping at the first error.
type MultiSink []Sink

func (m MultiSink) Draw(frame Frame) error {
	for _, s := range m {
		if err := s.Draw(frame); err != nil {
			return err
		}
	}
	return nil
}

// Renderer pulls a snapshot of the depth view on a fixed cadence and hands it to
// a sink. It never writes to the view.
type Renderer struct {
	depth    *book.Depth
	sink     Sink
	interval time.Duration
}

func New(depth *book.Depth, sink Sink, interval time.Duration) *Renderer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Renderer{
		depth:    depth,
		sink:     sink,
		interval: interval,
	}
}

// Frame takes a snapshot of the depth view.
func (r *Renderer) Frame() Frame {
	snap := r.depth.Snapshot()
	now := time.Now()
	return Frame{
		Bids: snap.Bids,
		Asks: snap.Asks,
		At:   now,
		TS:   now.UnixMilli(),
	}
}

// Draw renders a single frame.
func (r *Renderer) Draw() error {
	frame := r.Frame()
	if err := r.sink.Draw(frame); err != nil {
		return fmt.Errorf("draw frame: %w", err)
	}
	metrics.FramesRenderedTotal.Inc()
	metrics.DepthLevels.WithLabelValues("BUY").Set(float64(len(frame.Bids)))
	metrics.DepthLevels.WithLabelValues("SELL").Set(float64(len(frame.Asks)))
	return nil
}

// Run draws every interval until the tomb dies. A sink error stops the renderer
// and is returned so the owner can decide what to do; the depth view is left
// untouched.
func (r *Renderer) Run(t *tomb.Tomb) error {
	if r.sink == nil {
		return errors.New("renderer has no sink")
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", r.interval).Msg("renderer started")
	for {
		select {
		case <-t.Dying():
			return nil
		case <-ticker.C:
			if err := r.Draw(); err != nil {
				log.Error().Err(err).Msg("renderer stopping")
				return err
			}
		}
	}
}
