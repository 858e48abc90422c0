// Package server hosts the TCP acceptor, the per-connection protocol state
// machine, and the HTTP observability endpoint.
package server

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tsinin/message-broker/internal/broker"
)

// DefaultBufferSize is the per-connection buffer size; each string field
// of a wire record must fit within it.
const DefaultBufferSize = 65536

// Options configures a TCPServer.
type Options struct {
	// Address and Port form the listening endpoint.
	Address string
	Port    int

	// Threads caps GOMAXPROCS. Zero or negative keeps the runtime default
	// (hardware concurrency).
	Threads int

	// Timeout is the wall-clock deadline after which the server stops on
	// its own. Zero or negative disables the deadline.
	Timeout time.Duration

	// BufferSize bounds each string field of one wire record. Zero means
	// DefaultBufferSize.
	BufferSize int
}

// TCPServer accepts broker connections and runs one protocol goroutine per
// accepted socket.
type TCPServer struct {
	storage  broker.Storage
	logger   *zap.Logger
	opts     Options
	listener net.Listener
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc

	mu    sync.Mutex
	conns map[*Connection]struct{}

	stopOnce sync.Once
	done     chan struct{}
}

// NewTCPServer creates a broker server around the given storage.
func NewTCPServer(storage broker.Storage, opts Options, logger *zap.Logger) *TCPServer {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TCPServer{
		storage: storage,
		logger:  logger,
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		conns:   make(map[*Connection]struct{}),
		done:    make(chan struct{}),
	}
}

// Start binds the listening socket and begins accepting connections.
func (s *TCPServer) Start() error {
	if s.opts.Threads > 0 {
		runtime.GOMAXPROCS(s.opts.Threads)
	}

	addr := fmt.Sprintf("%s:%d", s.opts.Address, s.opts.Port)
	var err error
	s.listener, err = net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("TCP listen on %s: %w", addr, err)
	}

	s.logger.Info("TCP server starting",
		zap.String("addr", s.listener.Addr().String()),
		zap.Int("threads", runtime.GOMAXPROCS(0)),
		zap.Duration("timeout", s.opts.Timeout))

	if s.opts.Timeout > 0 {
		go func() {
			timer := time.NewTimer(s.opts.Timeout)
			defer timer.Stop()
			select {
			case <-timer.C:
				s.logger.Info("deadline expired, stopping server")
				s.Stop()
			case <-s.ctx.Done():
			}
		}()
	}

	go s.acceptLoop()
	return nil
}

// Addr returns the bound listener address. Valid after Start.
func (s *TCPServer) Addr() net.Addr {
	return s.listener.Addr()
}

// Done is closed once the server has fully stopped.
func (s *TCPServer) Done() <-chan struct{} {
	return s.done
}

// Stop terminates the accept loop, closes every live connection, and waits
// for the protocol goroutines to finish. In-flight deliveries that lose
// their consumer are re-posted by connection teardown. Safe to call more
// than once.
func (s *TCPServer) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		if s.listener != nil {
			_ = s.listener.Close()
		}

		s.mu.Lock()
		for c := range s.conns {
			_ = c.conn.Close()
		}
		s.mu.Unlock()

		s.wg.Wait()
		close(s.done)
		s.logger.Info("TCP server stopped")
	})
}

func (s *TCPServer) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				s.logger.Error("accept error", zap.Error(err))
				continue
			}
		}

		c := newConnection(conn, s.storage, s.opts.BufferSize, s.logger)

		s.mu.Lock()
		s.conns[c] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			c.serve(s.ctx)

			s.mu.Lock()
			delete(s.conns, c)
			s.mu.Unlock()
		}()
	}
}
