package generator

import (
	"context"
	"time"

	"depthsim/internal/book"
	. "depthsim/internal/common"
	"depthsim/internal/metrics"
	enginenet "depthsim/internal/net"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const (
	DefaultInterval = 100 * time.Millisecond
	DefaultCooldown = time.Second
)

// Transmitter delivers one order to the engine.
type Transmitter interface {
	Send(ctx context.Context, order Order) ([]byte, error)
}

type TraderConfig struct {
	Interval time.Duration // pause after a successful send
	Cooldown time.Duration // pause after a failed send
	// MaxOrders stops the trader after that many orders. Zero runs forever.
	MaxOrders int
}

// Trader is the producer loop: generate, record into the depth view, transmit,
// sleep. A failed transmission is logged and followed by a cooldown; the depth
// update already made for that order stays in place.
type Trader struct {
	gen   *Generator
	depth *book.Depth
	tx    Transmitter
	cfg   TraderConfig
}

func NewTrader(gen *Generator, depth *book.Depth, tx Transmitter, cfg TraderConfig) *Trader {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	return &Trader{
		gen:   gen,
		depth: depth,
		tx:    tx,
		cfg:   cfg,
	}
}

// Run loops until the tomb starts dying. It never returns an error for network
// failures.
func (tr *Trader) Run(t *tomb.Tomb) error {
	ctx := t.Context(context.Background())
	ranges := tr.gen.Ranges()
	log.Info().
		Str("buy", ranges.Buy.String()).
		Str("sell", ranges.Sell.String()).
		Str("qty", ranges.Quantity.String()).
		Msg("trader started")

	sent := 0
	for tr.cfg.MaxOrders == 0 || sent < tr.cfg.MaxOrders {
		order := tr.gen.Next()
		tr.depth.Record(order)
		metrics.OrdersGeneratedTotal.WithLabelValues(order.Side.String()).Inc()
		sent++

		pause := tr.cfg.Interval
		if err := tr.send(ctx, order); err != nil {
			select {
			case <-t.Dying():
				return nil
			default:
			}
			log.Warn().
				Err(err).
				Str("kind", enginenet.Classify(err).String()).
				Str("order", order.String()).
				Dur("cooldown", tr.cfg.Cooldown).
				Msg("error sending order")
			pause = tr.cfg.Cooldown
		}

		if !sleep(t, pause) {
			break
		}
	}

	log.Info().Int("orders", sent).Msg("trader stopped")
	return nil
}

func (tr *Trader) send(ctx context.Context, order Order) error {
	start := time.Now()
	ack, err := tr.tx.Send(ctx, order)
	if err != nil {
		metrics.SendFailuresTotal.WithLabelValues(enginenet.Classify(err).String()).Inc()
		return err
	}
	metrics.SendLatency.Observe(time.Since(start).Seconds())
	metrics.OrdersSentTotal.Inc()

	ev := log.Debug().Str("order", order.String())
	if len(ack) > 0 {
		ev = ev.Bytes("ack", ack)
	}
	ev.Msg("order sent")
	return nil
}

// sleep waits for d, returning false if the tomb started dying first.
func sleep(t *tomb.Tomb, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-t.Dying():
		return false
	case <-timer.C:
		return true
	}
}
