package common

import (
	"fmt"
	"time"
)

// Trade accounts for the two parties who matched.
type Trade struct {
	Taker     Order
	Maker     Order
	Timestamp time.Time
	MatchQty  uint64
	Price     uint64
}

func (t Trade) String() string {
	return fmt.Sprintf(
		"taker=%s maker=%s qty=%d price=%d at=%s",
		t.Taker.UUID,
		t.Maker.UUID,
		t.MatchQty,
		t.Price,
		t.Timestamp.Format(time.RFC3339),
	)
}
