package net

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	. "depthsim/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine records the payload of every connection it accepts, in accept order.
type fakeEngine struct {
	listener net.Listener
	reply    []byte

	mu       sync.Mutex
	payloads []string
	wg       sync.WaitGroup
}

func newFakeEngine(t *testing.T, reply []byte) *fakeEngine {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	e := &fakeEngine{listener: listener, reply: reply}
	e.wg.Add(1)
	go e.serve()
	t.Cleanup(func() {
		_ = listener.Close()
		e.wg.Wait()
	})
	return e
}

func (e *fakeEngine) serve() {
	defer e.wg.Done()
	for {
		conn, err := e.listener.Accept()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		buf := make([]byte, MaxMessageLen)
		n, _ := conn.Read(buf)

		e.mu.Lock()
		e.payloads = append(e.payloads, string(buf[:n]))
		e.mu.Unlock()

		if e.reply != nil {
			_, _ = conn.Write(e.reply)
		}
		_ = conn.Close()
	}
}

func (e *fakeEngine) Payloads() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.payloads...)
}

func TestSender_SendsOneLinePerConnection(t *testing.T) {
	engine := newFakeEngine(t, nil)
	sender := NewSender(SenderConfig{Addr: engine.listener.Addr().String()})

	ack, err := sender.Send(context.Background(), Order{Side: Buy, Price: 100, Quantity: 10})
	require.NoError(t, err)
	assert.Nil(t, ack)

	_, err = sender.Send(context.Background(), Order{Side: Sell, Price: 100, Quantity: 5})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return len(engine.Payloads()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"B 100 10", "S 100 5"}, engine.Payloads())
}

func TestSender_ReadsBoundedAck(t *testing.T) {
	engine := newFakeEngine(t, []byte("Order Processed\n"))
	sender := NewSender(SenderConfig{
		Addr:    engine.listener.Addr().String(),
		ReadAck: true,
		AckSize: 5,
	})

	ack, err := sender.Send(context.Background(), Order{Side: Sell, Price: 99, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, []byte("Order"), ack)
}

func TestSender_ConnectionRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	sender := NewSender(SenderConfig{Addr: addr})
	_, err = sender.Send(context.Background(), Order{Side: Buy, Price: 100, Quantity: 1})
	require.Error(t, err)

	var sendErr *SendError
	require.True(t, errors.As(err, &sendErr))
	assert.Equal(t, "dial", sendErr.Op)
	assert.Equal(t, KindRefused, sendErr.Kind)
	assert.Equal(t, KindRefused, Classify(err))
}

func TestSender_AckTimeout(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	// Accept and hold the connection open without replying.
	held := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err == nil {
			held <- conn
		}
	}()

	sender := NewSender(SenderConfig{
		Addr:      listener.Addr().String(),
		IOTimeout: 50 * time.Millisecond,
		ReadAck:   true,
	})
	_, err = sender.Send(context.Background(), Order{Side: Buy, Price: 100, Quantity: 1})
	assert.Equal(t, KindTimeout, Classify(err))

	select {
	case conn := <-held:
		_ = conn.Close()
	case <-time.After(time.Second):
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindOther, Classify(nil))
	assert.Equal(t, KindOther, Classify(errors.New("boom")))
	assert.Equal(t, KindTimeout, Classify(context.DeadlineExceeded))
	assert.Equal(t, KindReset, Classify(&SendError{Kind: KindReset, Op: "write", Err: io.ErrClosedPipe}))
	assert.Equal(t, "connection-refused", KindRefused.String())
}
