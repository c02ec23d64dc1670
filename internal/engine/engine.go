package engine

import (
	. "depthsim/internal/common"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// This is the reference matching engine. It is not safe for concurrent use; the
// TCP server funnels every order through a single session goroutine.
type Engine struct {
	Book *OrderBook
}

func New() *Engine {
	return &Engine{
		Book: NewOrderBook(),
	}
}

// PlaceOrder assigns the order an id, rests it and returns any trades it caused.
func (engine *Engine) PlaceOrder(order Order) (Order, []Trade) {
	order.UUID = uuid.New().String()

	trades := engine.Book.PlaceOrder(order)
	for _, trade := range trades {
		log.Info().
			Str("taker", trade.Taker.UUID).
			Str("maker", trade.Maker.UUID).
			Uint64("qty", trade.MatchQty).
			Uint64("price", trade.Price).
			Msg("match")
	}
	return order, trades
}

// LogBook returns both sides of the book, best level first.
func (engine *Engine) LogBook() (bids, asks []FlatPriceLevel) {
	return FlattenLevels(engine.Book.Bids.Items()), FlattenLevels(engine.Book.Asks.Items())
}
