package net

import (
	"context"
	"net"
	"testing"
	"time"

	. "depthsim/internal/common"
	"depthsim/internal/engine"
	"depthsim/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) (*engine.Engine, string) {
	t.Helper()
	eng := engine.New()
	srv := NewWithWorkers("127.0.0.1", 0, eng, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})

	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	addr, err := srv.Addr(waitCtx)
	require.NoError(t, err)
	return eng, addr
}

func TestServer_ProcessesOrdersAndReplies(t *testing.T) {
	_, addr := startServer(t)
	sender := NewSender(SenderConfig{Addr: addr, ReadAck: true})

	ack, err := sender.Send(context.Background(), Order{Side: Sell, Price: 100, Quantity: 10})
	require.NoError(t, err)
	assert.Equal(t, ackMessage, string(ack))

	ack, err = sender.Send(context.Background(), Order{Side: Buy, Price: 100, Quantity: 5})
	require.NoError(t, err)
	assert.Equal(t, ackMessage, string(ack))

	// The buyer filled against the resting seller, leaving 5 on the ask side.
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.EngineRestingOrders.WithLabelValues(Buy.String())))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EngineRestingOrders.WithLabelValues(Sell.String())))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.EngineRestingQty.WithLabelValues(Buy.String())))
	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.EngineRestingQty.WithLabelValues(Sell.String())))
}

func TestServer_RejectsMalformed(t *testing.T) {
	_, addr := startServer(t)

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("Q 1 1"))
	require.NoError(t, err)

	buf := make([]byte, MaxMessageLen)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Contains(t, string(buf[:n]), "Error: ")
}
