// Package book holds the client side aggregate view of generated order flow.
//
// Each side maps a price level to the running sum of every quantity generated at
// that price since the process started. Nothing is ever subtracted: the view is
// a forecast of intent and does not track fills on the engine.
package book

import (
	"sync"

	. "depthsim/internal/common"

	"github.com/tidwall/btree"
)

// Level is one price level with its cumulative quantity.
type Level struct {
	Price    uint64 `json:"price"`
	Quantity uint64 `json:"quantity"`
}

// Snapshot is a point in time copy of both sides, each sorted by price ascending.
type Snapshot struct {
	Bids []Level `json:"bids"`
	Asks []Level `json:"asks"`
}

// Depth is safe for concurrent use. The generator is the only writer and the
// renderer the only reader, but readers always get a copy.
type Depth struct {
	mu   sync.RWMutex
	bids *btree.Map[uint64, uint64]
	asks *btree.Map[uint64, uint64]
}

func New() *Depth {
	return &Depth{
		bids: new(btree.Map[uint64, uint64]),
		asks: new(btree.Map[uint64, uint64]),
	}
}

func (d *Depth) side(side Side) *btree.Map[uint64, uint64] {
	if side == Sell {
		return d.asks
	}
	return d.bids
}

// Add accumulates qty at (side, price).
func (d *Depth) Add(side Side, price, qty uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	levels := d.side(side)
	current, _ := levels.Get(price)
	levels.Set(price, current+qty)
}

// Record accumulates an order.
func (d *Depth) Record(order Order) {
	d.Add(order.Side, order.Price, order.Quantity)
}

// Quantity returns the cumulative quantity at (side, price), 0 if never seen.
func (d *Depth) Quantity(side Side, price uint64) uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()

	qty, _ := d.side(side).Get(price)
	return qty
}

// Levels returns the number of price levels on each side.
func (d *Depth) Levels() (bids, asks int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.bids.Len(), d.asks.Len()
}

func (d *Depth) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return Snapshot{
		Bids: collect(d.bids),
		Asks: collect(d.asks),
	}
}

func collect(levels *btree.Map[uint64, uint64]) []Level {
	out := make([]Level, 0, levels.Len())
	levels.Scan(func(price, qty uint64) bool {
		out = append(out, Level{Price: price, Quantity: qty})
		return true
	})
	return out
}

// Total sums the quantity across every level of a side.
func (s Snapshot) Total(side Side) uint64 {
	levels := s.Bids
	if side == Sell {
		levels = s.Asks
	}
	var total uint64
	for _, l := range levels {
		total += l.Quantity
	}
	return total
}
