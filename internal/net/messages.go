package net

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	. "depthsim/internal/common"
)

var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrNonPositive      = errors.New("price and quantity must be positive")
)

// Message format constants
const (
	MaxMessageLen = 1024
	fieldSep      = ' '
	ackMessage    = "Order Processed\n"
)

// EncodeOrder serializes an order as "<SIDE> <PRICE> <QUANTITY>", e.g. "B 100 5".
// No trailing newline is written.
func EncodeOrder(order Order) []byte {
	buf := make([]byte, 0, 24)
	buf = append(buf, order.Side.Code()...)
	buf = append(buf, fieldSep)
	buf = strconv.AppendUint(buf, order.Price, 10)
	buf = append(buf, fieldSep)
	buf = strconv.AppendUint(buf, order.Quantity, 10)
	return buf
}

// ParseOrder reconstructs an order from its wire form. Surrounding whitespace
// (a trailing newline, NUL padding) is tolerated, but the fields themselves must
// be separated by exactly one space.
func ParseOrder(msg []byte) (Order, error) {
	msg = bytes.Trim(msg, " \t\r\n\x00")
	if len(msg) == 0 || len(msg) > MaxMessageLen {
		return Order{}, ErrMalformedMessage
	}

	fields := bytes.Split(msg, []byte{fieldSep})
	if len(fields) != 3 {
		return Order{}, fmt.Errorf("%w: expected 3 fields, got %d", ErrMalformedMessage, len(fields))
	}

	side, err := ParseSide(string(fields[0]))
	if err != nil || len(fields[0]) != 1 {
		return Order{}, fmt.Errorf("%w: side %q", ErrMalformedMessage, fields[0])
	}
	price, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return Order{}, fmt.Errorf("%w: price: %w", ErrMalformedMessage, err)
	}
	qty, err := strconv.ParseUint(string(fields[2]), 10, 64)
	if err != nil {
		return Order{}, fmt.Errorf("%w: quantity: %w", ErrMalformedMessage, err)
	}
	if price == 0 || qty == 0 {
		return Order{}, ErrNonPositive
	}

	return Order{
		Side:     side,
		Price:    price,
		Quantity: qty,
		Total:    qty,
	}, nil
}

// errorReply builds the reply sent back for a message the engine rejected.
func errorReply(err error) []byte {
	return []byte(fmt.Sprintf("Error: %v\n", err))
}
