package transport

import (
	"net"
	"sync"

	"github.com/pion/logging"
)

// ConnHandler serves one accepted connection until it ends.
type ConnHandler func(conn net.Conn) error

// TCPServer accepts connections and hands each one to a ConnHandler on its
// own goroutine. It is used to host the test accessory on a real socket.
type TCPServer struct {
	listener net.Listener
	handler  ConnHandler
	closeCh  chan struct{}
	wg       sync.WaitGroup
	log      logging.LeveledLogger

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}

	mu      sync.Mutex
	started bool
	closed  bool
}

// TCPServerConfig configures a TCPServer.
type TCPServerConfig struct {
	// Listener is an optional pre-existing Listener to use.
	// If nil, a new listener will be created using ListenAddr.
	Listener net.Listener

	// ListenAddr is the address to listen on (e.g., "127.0.0.1:0").
	// Ignored if Listener is provided.
	ListenAddr string

	// Handler serves each accepted connection. Required.
	Handler ConnHandler

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// NewTCPServer creates a server with the given configuration.
func NewTCPServer(config TCPServerConfig) (*TCPServer, error) {
	if config.Handler == nil {
		return nil, ErrNoHandler
	}

	s := &TCPServer{
		listener: config.Listener,
		handler:  config.Handler,
		closeCh:  make(chan struct{}),
		conns:    make(map[net.Conn]struct{}),
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("transport-tcp")
	}

	if s.listener == nil {
		addr := config.ListenAddr
		if addr == "" {
			addr = ":0"
		}
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, err
		}
		s.listener = listener
	}
	return s, nil
}

// Start begins accepting connections.
func (s *TCPServer) Start() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	if s.log != nil {
		s.log.Infof("listening on %s", s.listener.Addr())
	}

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener and every open connection and waits for the
// handlers to return.
func (s *TCPServer) Stop() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.closed = true
	s.mu.Unlock()

	close(s.closeCh)
	s.listener.Close()

	s.connsMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()
	return nil
}

// Addr returns the listening address.
func (s *TCPServer) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *TCPServer) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return
			default:
				continue
			}
		}

		s.connsMu.Lock()
		s.conns[conn] = struct{}{}
		s.connsMu.Unlock()

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *TCPServer) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		conn.Close()
		s.connsMu.Lock()
		delete(s.conns, conn)
		s.connsMu.Unlock()
	}()

	if err := s.handler(conn); err != nil && s.log != nil {
		select {
		case <-s.closeCh:
		default:
			s.log.Warnf("connection from %s: %v", conn.RemoteAddr(), err)
		}
	}
}
