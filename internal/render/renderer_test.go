package render

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"depthsim/internal/book"
	. "depthsim/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tomb "gopkg.in/tomb.v2"
)

type captureSink struct {
	mu     sync.Mutex
	frames []Frame
	err    error
}

func (c *captureSink) Draw(frame Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame)
	return c.err
}

func (c *captureSink) Frames() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Frame(nil), c.frames...)
}

func TestTerminalSink_EmptyView(t *testing.T) {
	var out bytes.Buffer
	sink := NewTerminalSink(&out, WithoutColor())

	require.NoError(t, New(book.New(), sink, time.Millisecond).Draw())
	assert.Equal(t, "Live Limit Order Book Depth\n", out.String())
}

func TestTerminalSink_OneSideEmpty(t *testing.T) {
	depth := book.New()
	depth.Add(Sell, 101, 4)

	var out bytes.Buffer
	require.NoError(t, New(depth, NewTerminalSink(&out, WithoutColor(), WithWidth(4)), 0).Draw())

	assert.NotContains(t, out.String(), "Bids")
	assert.Contains(t, out.String(), "Asks (Sellers)\n     101 | ████ 4\n")
}

func TestTerminalSink_BarsSortedAndScaled(t *testing.T) {
	depth := book.New()
	depth.Add(Buy, 100, 10)
	depth.Add(Buy, 96, 5)
	depth.Add(Sell, 104, 1)

	var out bytes.Buffer
	require.NoError(t, New(depth, NewTerminalSink(&out, WithoutColor(), WithWidth(10)), 0).Draw())

	assert.Equal(t, "Live Limit Order Book Depth\n"+
		"Bids (Buyers)\n"+
		"      96 | █████ 5\n"+
		"     100 | ██████████ 10\n"+
		"Asks (Sellers)\n"+
		"     104 | █ 1\n", out.String())
}

func TestTerminalSink_ClearsScreen(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, NewTerminalSink(&out).Draw(Frame{}))
	assert.True(t, bytes.HasPrefix(out.Bytes(), []byte(clearScreen)))
}

func TestRenderer_DoesNotMutateView(t *testing.T) {
	depth := book.New()
	depth.Add(Buy, 100, 3)
	sink := &captureSink{}
	r := New(depth, sink, time.Millisecond)

	require.NoError(t, r.Draw())
	frames := sink.Frames()
	require.Len(t, frames, 1)
	frames[0].Bids[0].Quantity = 1000

	assert.Equal(t, uint64(3), depth.Quantity(Buy, 100))
	assert.Equal(t, []book.Level{{Price: 100, Quantity: 3}}, r.Frame().Bids)
}

func TestRenderer_RunsOnCadenceUntilStopped(t *testing.T) {
	sink := &captureSink{}
	r := New(book.New(), sink, 5*time.Millisecond)

	var tb tomb.Tomb
	tb.Go(func() error { return r.Run(&tb) })

	assert.Eventually(t, func() bool { return len(sink.Frames()) >= 3 }, time.Second, time.Millisecond)
	tb.Kill(nil)
	assert.NoError(t, tb.Wait())
}

func TestRenderer_SinkErrorSurfaces(t *testing.T) {
	boom := errors.New("display gone")
	depth := book.New()
	depth.Add(Sell, 99, 2)
	r := New(depth, &captureSink{err: boom}, time.Millisecond)

	var tb tomb.Tomb
	tb.Go(func() error { return r.Run(&tb) })

	assert.ErrorIs(t, tb.Wait(), boom)
	assert.Equal(t, uint64(2), depth.Quantity(Sell, 99))
}

func TestMultiSink(t *testing.T) {
	a, b := &captureSink{}, &captureSink{}
	require.NoError(t, MultiSink{a, b}.Draw(Frame{TS: 1}))
	assert.Len(t, a.Frames(), 1)
	assert.Len(t, b.Frames(), 1)

	failing := &captureSink{err: errors.New("x")}
	c := &captureSink{}
	assert.Error(t, MultiSink{failing, c}.Draw(Frame{}))
	assert.Empty(t, c.Frames())
}
