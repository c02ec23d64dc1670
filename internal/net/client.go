package net

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	. "depthsim/internal/common"

	"github.com/rs/zerolog/log"
)

const (
	DefaultEngineAddr  = "127.0.0.1:8080"
	defaultDialTimeout = 3 * time.Second
	defaultIOTimeout   = 3 * time.Second
)

// ErrorKind classifies a failed transmission.
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindRefused
	KindTimeout
	KindReset
)

func (k ErrorKind) String() string {
	switch k {
	case KindRefused:
		return "connection-refused"
	case KindTimeout:
		return "timeout"
	case KindReset:
		return "reset"
	}
	return "other"
}

// SendError is returned by Sender.Send for every failed transmission.
type SendError struct {
	Kind ErrorKind
	Op   string // dial, write or read
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Kind, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Classify maps a network error onto an ErrorKind.
func Classify(err error) ErrorKind {
	var sendErr *SendError
	if errors.As(err, &sendErr) {
		return sendErr.Kind
	}

	switch {
	case err == nil:
		return KindOther
	case errors.Is(err, syscall.ECONNREFUSED):
		return KindRefused
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ECONNABORTED):
		return KindReset
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindOther
}

func wrap(op string, err error) error {
	return &SendError{Kind: Classify(err), Op: op, Err: err}
}

type SenderConfig struct {
	Addr        string
	DialTimeout time.Duration
	IOTimeout   time.Duration // bounds the write and the optional ack read
	ReadAck     bool
	AckSize     int
}

// Sender transmits each order over its own short-lived TCP connection. It holds
// no connection state and is safe for concurrent use.
type Sender struct {
	cfg    SenderConfig
	dialer net.Dialer
}

func NewSender(cfg SenderConfig) *Sender {
	if cfg.Addr == "" {
		cfg.Addr = DefaultEngineAddr
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.IOTimeout <= 0 {
		cfg.IOTimeout = defaultIOTimeout
	}
	if cfg.AckSize <= 0 {
		cfg.AckSize = MaxMessageLen
	}
	return &Sender{
		cfg:    cfg,
		dialer: net.Dialer{Timeout: cfg.DialTimeout},
	}
}

func (s *Sender) Addr() string { return s.cfg.Addr }

// Send opens a connection, writes the encoded order and, when configured, reads
// one reply of at most AckSize bytes. The connection is always closed. The
// returned reply is nil when acks are not read or the engine closed without
// replying.
func (s *Sender) Send(ctx context.Context, order Order) (ack []byte, err error) {
	conn, err := s.dialer.DialContext(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return nil, wrap("dial", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil && err == nil {
			log.Debug().Err(cerr).Str("address", s.cfg.Addr).Msg("unable to close engine connection")
		}
	}()

	if err := conn.SetDeadline(time.Now().Add(s.cfg.IOTimeout)); err != nil {
		return nil, wrap("write", err)
	}

	if _, err := conn.Write(EncodeOrder(order)); err != nil {
		return nil, wrap("write", err)
	}

	if !s.cfg.ReadAck {
		return nil, nil
	}

	buf := make([]byte, s.cfg.AckSize)
	n, err := conn.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, wrap("read", err)
	}
	if n == 0 {
		return nil, nil
	}
	return buf[:n], nil
}
