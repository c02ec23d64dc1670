package generator

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	. "depthsim/internal/common"
)

var ErrInvalidRange = errors.New("invalid range")

// Range is an inclusive integer interval.
type Range struct {
	Min uint64 `yaml:"min"`
	Max uint64 `yaml:"max"`
}

func (r Range) Contains(v uint64) bool { return v >= r.Min && v <= r.Max }

func (r Range) String() string { return fmt.Sprintf("[%d,%d]", r.Min, r.Max) }

func (r Range) Validate() error {
	if r.Min == 0 || r.Max < r.Min {
		return fmt.Errorf("%w: %s", ErrInvalidRange, r)
	}
	return nil
}

// Ranges holds the side biased price bands and the quantity band. Buy prices are
// drawn from a higher band than sell prices and the two overlap, which keeps the
// engine matching.
type Ranges struct {
	Buy      Range `yaml:"buy"`
	Sell     Range `yaml:"sell"`
	Quantity Range `yaml:"qty"`
}

// VisualRanges are the bands used by the live visualizer.
func VisualRanges() Ranges {
	return Ranges{
		Buy:      Range{95, 102},
		Sell:     Range{98, 105},
		Quantity: Range{1, 10},
	}
}

// ScriptRanges are the bands used by the scripted client.
func ScriptRanges() Ranges {
	return Ranges{
		Buy:      Range{100, 110},
		Sell:     Range{90, 100},
		Quantity: Range{1, 10},
	}
}

func (r Ranges) Validate() error {
	if err := r.Buy.Validate(); err != nil {
		return fmt.Errorf("buy: %w", err)
	}
	if err := r.Sell.Validate(); err != nil {
		return fmt.Errorf("sell: %w", err)
	}
	if err := r.Quantity.Validate(); err != nil {
		return fmt.Errorf("qty: %w", err)
	}
	return nil
}

// Price returns the band for a side.
func (r Ranges) Price(side Side) Range {
	if side == Sell {
		return r.Sell
	}
	return r.Buy
}

// Generator creates random orders. It is not safe for concurrent use.
type Generator struct {
	ranges Ranges
	rng    *rand.Rand
}

// New creates a generator. A zero seed seeds from the clock.
func New(ranges Ranges, seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		ranges: ranges,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

func (g *Generator) Ranges() Ranges { return g.ranges }

// Next draws a side uniformly, then a price from that side's band and a quantity.
func (g *Generator) Next() Order {
	side := Buy
	if g.rng.Intn(2) == 1 {
		side = Sell
	}
	qty := g.draw(g.ranges.Quantity)
	return Order{
		Side:     side,
		Price:    g.draw(g.ranges.Price(side)),
		Quantity: qty,
		Total:    qty,
	}
}

func (g *Generator) draw(r Range) uint64 {
	return r.Min + uint64(g.rng.Int63n(int64(r.Max-r.Min+1)))
}
