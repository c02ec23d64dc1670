package common

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidSide = errors.New("invalid side")

type Side int

const (
	Buy Side = iota
	Sell
)

// Code returns the single letter used for the side on the wire.
func (s Side) Code() string {
	if s == Sell {
		return "S"
	}
	return "B"
}

func (s Side) String() string {
	if s == Sell {
		return "SELL"
	}
	return "BUY"
}

// ParseSide accepts the wire codes ("B", "S") as well as "buy"/"sell".
func ParseSide(code string) (Side, error) {
	switch code {
	case "B", "b", "BUY", "buy":
		return Buy, nil
	case "S", "s", "SELL", "sell":
		return Sell, nil
	}
	return Buy, fmt.Errorf("%w: %q", ErrInvalidSide, code)
}

type Order struct {
	UUID      string    // Engine assigned id, empty on the client side
	Side      Side      // Order side
	Price     uint64    // Limit price in engine price units
	Quantity  uint64    // Remaining quantity
	Total     uint64    // Total volume requested
	Timestamp time.Time // Time of arrival of order into the book
}

func (order Order) String() string {
	return fmt.Sprintf("%s %d x %d", order.Side, order.Price, order.Quantity)
}
