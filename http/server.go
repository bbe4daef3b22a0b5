package http

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/soheilhy/cmux"
)

var ErrServerClosed = errors.New("http: server closed")

// Config configures a Server. Ports below zero disable a listener and zero
// picks a free port.
type Config struct {
	Port       int
	SecurePort int
	// Hostname is the authority used when a request carries none. It is
	// also the bind address when Address is empty.
	Hostname string
	Address  string

	MaxRequestSize int64
	KeepAlive      KeepAliveStrategy
	Dispatcher     Dispatcher
	// Https enables the secure listener.
	Https *Https
	// H2C accepts HTTP/2 with prior knowledge on the plaintext port.
	H2C       bool
	ReusePort bool

	ShutdownGrace time.Duration
}

func DefaultConfig() Config {
	return Config{
		Port:           DefaultPort,
		SecurePort:     DefaultSecurePort,
		MaxRequestSize: DefaultMaxRequestSize,
		KeepAlive:      DefaultKeepAlive,
		ShutdownGrace:  DefaultShutdownGrace,
	}
}

type Server struct {
	Name    string
	Config  Config
	Handler RequestHandler

	mu        sync.Mutex
	listeners []net.Listener
	muxes     []cmux.CMux
	addrs     map[bool]net.Addr
	wg        sync.WaitGroup
	started   bool
	closed    bool
}

func NewServer(name string, handler RequestHandler, cfg Config) *Server {
	if cfg.Dispatcher == nil {
		cfg.Dispatcher = NewUnboundedDispatcher()
	}
	return &Server{
		Name:    name,
		Config:  cfg,
		Handler: handler,
		addrs:   make(map[bool]net.Addr),
	}
}

// Start binds the configured listeners and accepts connections in the
// background. A listener that cannot be bound is logged and skipped; Start
// fails only when none of them could be bound.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServerClosed
	}
	if s.started {
		return errors.New("http: server already started")
	}

	secure := s.Config.Https != nil && s.Config.SecurePort >= 0
	insecure := s.Config.Port >= 0
	if !secure && !insecure {
		return errors.New("http: no listener configured")
	}

	var (
		errs        []error
		tlsListener net.Listener
		plain       net.Listener
	)

	if secure {
		l, err := s.listen(ctx, s.Config.SecurePort)
		if err != nil {
			logger.ErrorContext(ctx, "server: secure listener failed", "port", s.Config.SecurePort, "error", err)
			errs = append(errs, err)
		} else {
			s.track(l, true)
			tlsListener = l
		}
	}

	if insecure {
		l, err := s.listen(ctx, s.Config.Port)
		if err != nil {
			logger.ErrorContext(ctx, "server: plaintext listener failed", "port", s.Config.Port, "error", err)
			errs = append(errs, err)
		} else {
			s.track(l, false)
			plain = l
		}
	}

	if len(s.listeners) == 0 {
		return errors.Join(errs...)
	}

	s.Config.Dispatcher.Start()

	if tlsListener != nil {
		s.goServe(tlsListener, true, false)
	}

	if plain != nil {
		if s.Config.H2C {
			m := cmux.New(plain)
			h2c := m.Match(cmux.HTTP2())
			http1 := m.Match(cmux.Any())
			s.muxes = append(s.muxes, m)

			s.goServe(h2c, false, true)
			s.goServe(http1, false, false)
			go func() {
				if err := m.Serve(); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, cmux.ErrListenerClosed) {
					logger.Warn("server: connection multiplexer stopped", "error", err)
				}
			}()
		} else {
			s.goServe(plain, false, false)
		}
	}

	s.started = true
	logger.InfoContext(ctx, "server: started", "name", s.Name, "addresses", s.addrList())
	return nil
}

// ListenAndServe starts the server and blocks until ctx is done, then shuts
// it down within the configured grace period.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	grace := s.Config.ShutdownGrace
	if grace <= 0 {
		grace = DefaultShutdownGrace
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return ErrServerClosed
}

func (s *Server) listen(ctx context.Context, port int) (net.Listener, error) {
	host := s.Config.Address
	if host == "" {
		host = s.Config.Hostname
	}

	lc := net.ListenConfig{Control: listenControl(s.Config.ReusePort)}
	return lc.Listen(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
}

func (s *Server) track(l net.Listener, secure bool) {
	s.listeners = append(s.listeners, l)
	s.addrs[secure] = l.Addr()
}

func (s *Server) goServe(l net.Listener, secure, h2c bool) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.serve(l, secure, h2c); err != nil && !errors.Is(err, ErrServerClosed) {
			logger.Error("server: accept loop stopped", "address", l.Addr().String(), "error", err)
		}
	}()
}

// Serve accepts plaintext HTTP/1 connections from l until it is closed.
func (s *Server) Serve(l net.Listener) error {
	return s.serve(l, false, false)
}

func (s *Server) serve(l net.Listener, secure, h2c bool) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = 0
	b.Reset()

	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || errors.Is(err, cmux.ErrListenerClosed) || s.isClosed() {
				return ErrServerClosed
			}

			acceptErrors.Add(context.Background(), 1)
			delay := b.NextBackOff()
			logger.Warn("server: accept failed, retrying", "address", l.Addr().String(), "delay", delay, "error", err)
			time.Sleep(delay)
			continue
		}
		b.Reset()

		if err := s.Config.Dispatcher.Dispatch(s.newUnit(conn, secure, h2c)); err != nil {
			if errors.Is(err, ErrDispatcherClosed) {
				return ErrServerClosed
			}
			logger.Warn("server: dispatch failed", "error", err)
		}
	}
}

// ServeConn serves a single plaintext HTTP/1 connection on the caller.
func (s *Server) ServeConn(conn net.Conn) {
	s.newUnit(conn, false, false).Serve(context.Background())
}

func (s *Server) newUnit(conn net.Conn, secure, h2c bool) *Unit {
	return &Unit{
		Conn:           conn,
		Secure:         secure,
		InsecureOnly:   s.Config.Https == nil || s.Config.SecurePort < 0,
		H2C:            h2c,
		Https:          s.Config.Https,
		Hostname:       s.Config.Hostname,
		MaxRequestSize: s.Config.MaxRequestSize,
		KeepAlive:      s.Config.KeepAlive,
		Handler:        s.Handler,
	}
}

// Addr returns the bound address of the plaintext or the secure listener.
func (s *Server) Addr(secure bool) net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addrs[secure]
}

func (s *Server) addrList() []string {
	list := make([]string, 0, len(s.listeners))
	for _, l := range s.listeners {
		list = append(list, l.Addr().String())
	}
	return list
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) closeListeners() error {
	var errs []error
	for _, m := range s.muxes {
		m.Close()
	}
	for _, l := range s.listeners {
		if err := l.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	s.listeners = nil
	s.muxes = nil
	return errors.Join(errs...)
}

// Shutdown closes the listeners, then lets the dispatcher drain in-flight
// connections until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	err := s.closeListeners()
	s.mu.Unlock()

	if derr := s.Config.Dispatcher.Shutdown(ctx); derr != nil {
		err = errors.Join(err, derr)
	}
	s.wg.Wait()
	logger.InfoContext(ctx, "server: stopped", "name", s.Name)
	return err
}
