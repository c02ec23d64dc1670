package render

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"depthsim/internal/book"

	"github.com/fatih/color"
)

const (
	clearScreen  = "\x1b[H\x1b[2J"
	defaultWidth = 50
	barRune      = "█"
)

// TerminalSink draws a horizontal bar chart, one bar per price level, bids in
// green and asks in red. Bar length is scaled to the largest level on screen.
type TerminalSink struct {
	out   io.Writer
	width int
	clear bool
	bid   *color.Color
	ask   *color.Color
}

type TerminalOption func(*TerminalSink)

// WithoutColor disables ANSI colours and screen clearing, e.g. for tests or logs.
func WithoutColor() TerminalOption {
	return func(s *TerminalSink) {
		s.bid.DisableColor()
		s.ask.DisableColor()
		s.clear = false
	}
}

func WithWidth(width int) TerminalOption {
	return func(s *TerminalSink) {
		if width > 0 {
			s.width = width
		}
	}
}

func NewTerminalSink(out io.Writer, opts ...TerminalOption) *TerminalSink {
	s := &TerminalSink{
		out:   out,
		width: defaultWidth,
		clear: true,
		bid:   color.New(color.FgGreen),
		ask:   color.New(color.FgRed),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TerminalSink) Draw(frame Frame) error {
	w := bufio.NewWriter(s.out)
	if s.clear {
		w.WriteString(clearScreen)
	}
	fmt.Fprintln(w, "Live Limit Order Book Depth")

	peak := maxQuantity(frame.Bids, frame.Asks)
	if len(frame.Bids) > 0 {
		fmt.Fprintln(w, "Bids (Buyers)")
		s.series(w, s.bid, frame.Bids, peak)
	}
	if len(frame.Asks) > 0 {
		fmt.Fprintln(w, "Asks (Sellers)")
		s.series(w, s.ask, frame.Asks, peak)
	}
	return w.Flush()
}

func (s *TerminalSink) series(w io.Writer, c *color.Color, levels []book.Level, peak uint64) {
	for _, l := range levels {
		fmt.Fprintf(w, "%8d | ", l.Price)
		c.Fprint(w, strings.Repeat(barRune, barLen(l.Quantity, peak, s.width)))
		fmt.Fprintf(w, " %d\n", l.Quantity)
	}
}

func barLen(qty, peak uint64, width int) int {
	if qty == 0 || peak == 0 {
		return 0
	}
	n := int(qty * uint64(width) / peak)
	if n == 0 {
		n = 1
	}
	return n
}

func maxQuantity(sides ...[]book.Level) uint64 {
	var peak uint64
	for _, levels := range sides {
		for _, l := range levels {
			peak = max(peak, l.Quantity)
		}
	}
	return peak
}
