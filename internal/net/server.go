package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	. "depthsim/internal/common"
	"depthsim/internal/engine"
	"depthsim/internal/metrics"
	"depthsim/internal/utils"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const (
	MAX_RECV_SIZE      = MaxMessageLen
	defaultNWorkers    = 10
	defaultConnTimeout = time.Second
)

var (
	ErrImproperConversion = errors.New("improper type conversion")
	ErrServerStopped      = errors.New("server stopped")
)

// ClientMessage links a parsed order to the connection waiting on its result.
type ClientMessage struct {
	clientAddress string
	order         Order
	result        chan Order
}

// Server is the reference engine front end: one order per connection, a reply,
// then the connection is closed.
type Server struct {
	address        string
	port           int
	engine         *engine.Engine
	pool           utils.WorkerPool
	cancel         context.CancelFunc
	clientMessages chan ClientMessage

	listenerLock sync.Mutex
	listener     net.Listener
	ready        chan struct{}
}

func New(address string, port int, eng *engine.Engine) *Server {
	return NewWithWorkers(address, port, eng, defaultNWorkers)
}

func NewWithWorkers(address string, port int, eng *engine.Engine, workers uint) *Server {
	return &Server{
		address:        address,
		port:           port,
		engine:         eng,
		pool:           utils.NewWorkerPool(workers),
		clientMessages: make(chan ClientMessage, 1),
		ready:          make(chan struct{}),
	}
}

func (s *Server) Shutdown() {
	log.Info().Msg("server shutting down")
	if s.cancel != nil {
		s.cancel()
	}
}

// Addr blocks until the listener is bound and returns its address. Useful when
// the server was started on port 0.
func (s *Server) Addr(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-s.ready:
	}
	s.listenerLock.Lock()
	defer s.listenerLock.Unlock()
	if s.listener == nil {
		return "", ErrServerStopped
	}
	return s.listener.Addr().String(), nil
}

// Run accepts connections until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	// Setup a cancel on the context for future shutdown.
	ctx, s.cancel = context.WithCancel(ctx)
	defer s.Shutdown()
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		close(s.ready)
		log.Error().Err(err).Msg("unable to start listener")
		return err
	}
	s.listenerLock.Lock()
	s.listener = listener
	s.listenerLock.Unlock()
	close(s.ready)

	// Accept blocks, so the listener is closed from the dying tomb.
	t.Go(func() error {
		<-t.Dying()
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
		return nil
	})

	t.Go(func() error {
		s.pool.Setup(t, s.handleConnection)
		return nil
	})

	t.Go(func() error {
		return s.sessionHandler(t)
	})

	t.Go(func() error {
		return s.acceptLoop(t, listener)
	})

	log.Info().Str("address", listener.Addr().String()).Msg("server running")

	<-t.Dying()
	if err := t.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *Server) acceptLoop(t *tomb.Tomb, listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-t.Dying():
				return nil
			default:
			}
			log.Error().Err(err).Msg("error accepting client")
			continue
		}

		log.Debug().
			Str("address", conn.RemoteAddr().String()).
			Msg("new client connection")

		if !s.pool.AddTask(t, conn) {
			_ = conn.Close()
			return nil
		}
	}
}

// sessionHandler is the only goroutine that touches the engine. Orders arrive
// from the workers in the order they finished parsing.
func (s *Server) sessionHandler(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case message := <-s.clientMessages:
			placed, trades := s.engine.PlaceOrder(message.order)
			metrics.EngineOrdersTotal.Inc()
			metrics.EngineTradesTotal.Add(float64(len(trades)))
			s.recordBook()
			log.Info().
				Str("address", message.clientAddress).
				Str("uuid", placed.UUID).
				Str("side", placed.Side.String()).
				Uint64("price", placed.Price).
				Uint64("qty", placed.Quantity).
				Int("trades", len(trades)).
				Msg("order placed")
			message.result <- placed
		}
	}
}

// recordBook publishes the resting side of the book after every order.
func (s *Server) recordBook() {
	nBids, nAsks := s.engine.Book.Orders()
	bidQty, askQty := s.engine.Book.Liquidity()
	metrics.EngineRestingOrders.WithLabelValues(Buy.String()).Set(float64(nBids))
	metrics.EngineRestingOrders.WithLabelValues(Sell.String()).Set(float64(nAsks))
	metrics.EngineRestingQty.WithLabelValues(Buy.String()).Set(float64(bidQty))
	metrics.EngineRestingQty.WithLabelValues(Sell.String()).Set(float64(askQty))
}

// handleConnection is a short-lived worker method which reads the one message
// the connection carries, hands it to sessionHandler, replies and closes.
// Note, any error returned from here is fatal.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}
	address := conn.RemoteAddr().String()

	defer func() {
		if err := conn.Close(); err != nil {
			log.Error().Str("address", address).Err(err).Msg("failed closing connection")
		}
	}()

	// Set max read timeout.
	if err := conn.SetDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().
			Str("address", address).
			Err(err).
			Msg("failed setting deadline for connection")
		return nil
	}

	buffer := make([]byte, MAX_RECV_SIZE)
	n, err := conn.Read(buffer)
	if err != nil {
		log.Error().
			Err(err).
			Str("address", address).
			Msg("error reading from connection")
		return nil
	}

	order, err := ParseOrder(buffer[:n])
	if err != nil {
		log.Warn().
			Err(err).
			Str("address", address).
			Msg("error parsing message")
		s.reply(conn, errorReply(err))
		return nil
	}

	result := make(chan Order, 1)
	select {
	case <-t.Dying():
		return nil
	case s.clientMessages <- ClientMessage{clientAddress: address, order: order, result: result}:
	}

	select {
	case <-t.Dying():
		return nil
	case <-result:
		s.reply(conn, []byte(ackMessage))
	}
	return nil
}

// reply is best effort: clients that do not read acks may already be gone.
func (s *Server) reply(conn net.Conn, msg []byte) {
	if _, err := conn.Write(msg); err != nil {
		log.Debug().
			Err(err).
			Str("address", conn.RemoteAddr().String()).
			Msg("unable to send reply")
	}
}
