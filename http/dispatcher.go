package http

import (
	"context"
	"errors"
	"net"
	"sync"
)

var ErrDispatcherClosed = errors.New("http: dispatcher is shut down")

// Dispatcher runs the serve routine of accepted connections.
//
// Start allocates workers, Dispatch hands off one unit and Shutdown stops
// accepting work and waits for in-flight units until ctx expires (or
// DefaultShutdownGrace when ctx has no deadline). Connections still open
// after that are closed. Shutdown may be called more than once and before
// Start.
type Dispatcher interface {
	Start()
	Dispatch(unit *Unit) error
	Shutdown(ctx context.Context) error
}

type tracker struct {
	mu     sync.Mutex
	closed bool
	conns  map[net.Conn]struct{}
	wg     sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

func (t *tracker) init() {
	if t.conns == nil {
		t.conns = make(map[net.Conn]struct{})
		t.ctx, t.cancel = context.WithCancel(context.Background())
	}
}

// admit registers unit as in flight. It fails once the dispatcher is closed.
func (t *tracker) admit(unit *Unit) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		unit.Conn.Close()
		return ErrDispatcherClosed
	}
	t.init()
	t.conns[unit.Conn] = struct{}{}
	t.wg.Add(1)
	activeConns.Add(t.ctx, 1)
	return nil
}

func (t *tracker) run(unit *Unit) {
	defer t.done(unit)
	unit.Serve(t.ctx)
}

func (t *tracker) done(unit *Unit) {
	unit.Conn.Close()

	t.mu.Lock()
	delete(t.conns, unit.Conn)
	t.mu.Unlock()

	activeConns.Add(context.Background(), -1)
	t.wg.Done()
}

// close marks the tracker closed. It reports false when it already was.
func (t *tracker) close() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return false
	}
	t.closed = true
	t.init()
	return true
}

func (t *tracker) wait(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultShutdownGrace)
		defer cancel()
	}

	idle := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(idle)
	}()

	select {
	case <-idle:
		t.cancel()
		return nil
	case <-ctx.Done():
	}

	t.mu.Lock()
	open := len(t.conns)
	for conn := range t.conns {
		conn.Close()
	}
	t.mu.Unlock()
	t.cancel()

	logger.Error("dispatcher: graceful shutdown timed out, closing connections", "open", open, "error", ctx.Err())
	return nil
}

// InlineDispatcher serves each connection on the caller. The accept loop is
// blocked while a connection is served.
type InlineDispatcher struct {
	tracker
}

func NewInlineDispatcher() *InlineDispatcher {
	return &InlineDispatcher{}
}

func (d *InlineDispatcher) Start() {}

func (d *InlineDispatcher) Dispatch(unit *Unit) error {
	if err := d.admit(unit); err != nil {
		return err
	}
	d.run(unit)
	return nil
}

func (d *InlineDispatcher) Shutdown(ctx context.Context) error {
	if !d.close() {
		return nil
	}
	return d.wait(ctx)
}

// UnboundedDispatcher serves every connection on its own goroutine.
type UnboundedDispatcher struct {
	tracker
}

func NewUnboundedDispatcher() *UnboundedDispatcher {
	return &UnboundedDispatcher{}
}

func (d *UnboundedDispatcher) Start() {}

func (d *UnboundedDispatcher) Dispatch(unit *Unit) error {
	if err := d.admit(unit); err != nil {
		return err
	}
	go d.run(unit)
	return nil
}

func (d *UnboundedDispatcher) Shutdown(ctx context.Context) error {
	if !d.close() {
		return nil
	}
	return d.wait(ctx)
}

// PoolDispatcher serves connections on a fixed number of workers draining a
// shared queue. Connections wait in the queue while every worker is busy.
type PoolDispatcher struct {
	tracker

	workers int
	queue   chan *Unit
	quit    chan struct{}
	once    sync.Once
}

func NewFixedPoolDispatcher(workers int) *PoolDispatcher {
	if workers < 1 {
		workers = 1
	}
	return &PoolDispatcher{
		workers: workers,
		queue:   make(chan *Unit, ChannelBufferSize),
		quit:    make(chan struct{}),
	}
}

// NewSingleWorkerDispatcher serves connections strictly one after another.
func NewSingleWorkerDispatcher() *PoolDispatcher {
	return NewFixedPoolDispatcher(1)
}

func (d *PoolDispatcher) Workers() int {
	return d.workers
}

func (d *PoolDispatcher) Start() {
	d.once.Do(func() {
		for range d.workers {
			go d.work()
		}
	})
}

func (d *PoolDispatcher) work() {
	for {
		select {
		case unit := <-d.queue:
			d.run(unit)
		case <-d.quit:
			return
		}
	}
}

func (d *PoolDispatcher) Dispatch(unit *Unit) error {
	d.Start()
	if err := d.admit(unit); err != nil {
		return err
	}

	select {
	case d.queue <- unit:
		// Shutdown may have drained the queue before the send landed.
		select {
		case <-d.quit:
			d.drain()
		default:
		}
		return nil
	case <-d.quit:
		d.done(unit)
		return ErrDispatcherClosed
	}
}

// drain drops queued connections that no worker started.
func (d *PoolDispatcher) drain() {
	for {
		select {
		case unit := <-d.queue:
			d.done(unit)
		default:
			return
		}
	}
}

func (d *PoolDispatcher) Shutdown(ctx context.Context) error {
	if !d.close() {
		return nil
	}
	close(d.quit)

	d.drain()
	return d.wait(ctx)
}
