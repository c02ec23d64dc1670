package app

import (
	"context"
	"time"

	"depthsim/internal/book"
	. "depthsim/internal/common"
	"depthsim/internal/generator"
	enginenet "depthsim/internal/net"

	"github.com/rs/zerolog/log"
)

type ScriptConfig struct {
	Opening  []Order       // fixed orders sent first, in order
	Pause    time.Duration // wait after the opening orders
	Random   int           // number of random orders that follow
	Interval time.Duration // wait between random orders
	Ranges   generator.Ranges
	Seed     int64
}

// DefaultScript seeds a resting seller, then a buyer that should match it, then
// a burst of crossing random flow.
func DefaultScript() ScriptConfig {
	return ScriptConfig{
		Opening: []Order{
			{Side: Sell, Price: 100, Quantity: 10, Total: 10},
			{Side: Buy, Price: 100, Quantity: 5, Total: 5},
		},
		Pause:    time.Second,
		Random:   20,
		Interval: 100 * time.Millisecond,
		Ranges:   generator.ScriptRanges(),
	}
}

// ScriptResult counts what the script managed to deliver.
type ScriptResult struct {
	Sent   int
	Failed int
}

// RunScript sends the scripted orders one connection at a time, in program
// order. Every order is recorded into depth before it is sent. Failures are
// logged and the script moves on.
func RunScript(ctx context.Context, tx generator.Transmitter, depth *book.Depth, cfg ScriptConfig) (ScriptResult, error) {
	var res ScriptResult
	send := func(order Order) {
		depth.Record(order)
		log.Info().Str("order", string(enginenet.EncodeOrder(order))).Msg("sending")
		ack, err := tx.Send(ctx, order)
		if err != nil {
			res.Failed++
			log.Warn().Err(err).Str("kind", enginenet.Classify(err).String()).Msg("error sending order")
			return
		}
		res.Sent++
		if len(ack) > 0 {
			log.Info().Bytes("reply", ack).Msg("server replied")
		}
	}

	for i, order := range cfg.Opening {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		send(order)
		if i < len(cfg.Opening)-1 {
			if err := wait(ctx, cfg.Pause); err != nil {
				return res, err
			}
		}
	}

	gen := generator.New(cfg.Ranges, cfg.Seed)
	for i := 0; i < cfg.Random; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		send(gen.Next())
		if err := wait(ctx, cfg.Interval); err != nil {
			return res, err
		}
	}

	bids, asks := depth.Levels()
	snap := depth.Snapshot()
	log.Info().
		Int("sent", res.Sent).
		Int("failed", res.Failed).
		Int("bid_levels", bids).
		Int("ask_levels", asks).
		Uint64("bid_qty", snap.Total(Buy)).
		Uint64("ask_qty", snap.Total(Sell)).
		Msg("script finished")
	return res, nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
