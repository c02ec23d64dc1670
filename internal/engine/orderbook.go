package engine

import (
	"time"

	. "depthsim/internal/common"

	"github.com/tidwall/btree"
)

type PriceLevel struct {
	priceLevel uint64
	orders     []*Order
}

type PriceLevels = btree.BTreeG[*PriceLevel]
type OrderBook struct {
	// Price levels to orders sat on the price level, sorted by time added
	// as they will be push-back'd.
	Bids *PriceLevels
	Asks *PriceLevels

	// Some book keeping
	nBuyOrders   uint64 // Track the number of bids in the book.
	nSellOrders  uint64 // Track the number of asks in the book.
	buyQuantity  uint64 // Track the bid-side liquidity of the book.
	sellQuantity uint64 // Track the ask-side liquidity of the book.
}

func NewOrderBook() *OrderBook {
	// Sorted greatest first.
	bids := btree.NewBTreeGOptions(func(a, b *PriceLevel) bool {
		return a.priceLevel > b.priceLevel
	}, btree.Options{NoLocks: true})
	// Sorted least first.
	asks := btree.NewBTreeGOptions(func(a, b *PriceLevel) bool {
		return a.priceLevel < b.priceLevel
	}, btree.Options{NoLocks: true})
	return &OrderBook{
		Bids: bids,
		Asks: asks,
	}
}

// PlaceOrder rests a limit order at its price level and then runs the matcher.
// Returns the trades the order caused, in execution order.
//
// The ExchTimestamp of the order is written here. We do not care about the
// accuracy of the timestamp, just its relativity to other timestamps.
func (book *OrderBook) PlaceOrder(order Order) []Trade {
	order.Timestamp = time.Now()
	if order.Total == 0 {
		order.Total = order.Quantity
	}

	var levels *PriceLevels
	switch order.Side {
	case Buy:
		levels = book.Bids
		book.nBuyOrders++
		book.buyQuantity += order.Quantity
	case Sell:
		levels = book.Asks
		book.nSellOrders++
		book.sellQuantity += order.Quantity
	}

	// Levels comparator only accounts for price levels, so we create a dummy price
	// level for the search.
	level, ok := levels.GetMut(&PriceLevel{priceLevel: order.Price})
	if ok {
		level.orders = append(level.orders, &order)
	} else {
		levels.Set(&PriceLevel{
			priceLevel: order.Price,
			orders:     []*Order{&order},
		})
	}

	return book.Match()
}

// Match consumes the top of book price levels while they cross (i.e., bid >= ask).
// While these orders cross, we match orders in price-time-priority. Trades are
// booked at the resting ask price.
//
// The later of the two orders is considered to be the liquidity taker.
func (book *OrderBook) Match() []Trade {
	var trades []Trade
	for {
		bestBid, bidOk := book.Bids.MinMut()
		bestAsk, askOk := book.Asks.MinMut()

		// If either side is empty, or prices don't cross, we are done.
		if !bidOk || !askOk || bestBid.priceLevel < bestAsk.priceLevel {
			break
		}

		var aIdx, bIdx int
		for aIdx < len(bestAsk.orders) && bIdx < len(bestBid.orders) {
			askOrder := bestAsk.orders[aIdx]
			bidOrder := bestBid.orders[bIdx]

			matchQty := min(askOrder.Quantity, bidOrder.Quantity)
			askOrder.Quantity -= matchQty
			bidOrder.Quantity -= matchQty
			book.buyQuantity -= matchQty
			book.sellQuantity -= matchQty

			trade := Trade{
				Timestamp: time.Now(),
				MatchQty:  matchQty,
				Price:     bestAsk.priceLevel,
			}
			if askOrder.Timestamp.After(bidOrder.Timestamp) {
				trade.Taker, trade.Maker = *askOrder, *bidOrder
			} else {
				trade.Taker, trade.Maker = *bidOrder, *askOrder
			}
			trades = append(trades, trade)

			if askOrder.Quantity == 0 {
				aIdx++
				book.nSellOrders--
			}
			if bidOrder.Quantity == 0 {
				bIdx++
				book.nBuyOrders--
			}
		}

		// Drop the consumed orders, then any level left empty.
		bestAsk.orders = bestAsk.orders[aIdx:]
		bestBid.orders = bestBid.orders[bIdx:]
		if len(bestAsk.orders) == 0 {
			book.Asks.Delete(bestAsk)
		}
		if len(bestBid.orders) == 0 {
			book.Bids.Delete(bestBid)
		}
	}
	return trades
}

// Liquidity returns the resting quantity on each side.
func (book *OrderBook) Liquidity() (bids, asks uint64) {
	return book.buyQuantity, book.sellQuantity
}

// Orders returns the number of resting orders on each side.
func (book *OrderBook) Orders() (bids, asks uint64) {
	return book.nBuyOrders, book.nSellOrders
}

// FlatPriceLevel is an exported copy of a price level, used for inspection.
type FlatPriceLevel struct {
	PriceLevel uint64
	Orders     []*Order
}

// FlattenLevels copies levels in book order (best first).
func FlattenLevels(levels []*PriceLevel) []FlatPriceLevel {
	flat := make([]FlatPriceLevel, 0, len(levels))
	for _, level := range levels {
		orders := make([]*Order, len(level.orders))
		for i, o := range level.orders {
			cp := *o
			orders[i] = &cp
		}
		flat = append(flat, FlatPriceLevel{
			PriceLevel: level.priceLevel,
			Orders:     orders,
		})
	}
	return flat
}
