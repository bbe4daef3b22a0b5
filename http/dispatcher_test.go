package http

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// concurrencyProbe records how many requests were being handled at once.
type concurrencyProbe struct {
	active atomic.Int32
	peak   atomic.Int32
}

func (p *concurrencyProbe) ServeRequest(req *Request) (*Response, error) {
	n := p.active.Add(1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	p.active.Add(-1)
	return NewResponseBuilder().WithStatus(StatusOK).WithNoBody().Build()
}

// roundTrip dispatches one connection and completes a request on it.
func roundTrip(t *testing.T, d Dispatcher, handler RequestHandler, wg *sync.WaitGroup) {
	t.Helper()

	serverConn, clientConn := net.Pipe()
	if err := d.Dispatch(&Unit{Conn: serverConn, Handler: handler}); err != nil {
		t.Fatal(err)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer clientConn.Close()
		clientConn.SetDeadline(time.Now().Add(5 * time.Second))
		clientConn.Write([]byte("GET / HTTP/1.1\r\nHost: localhost\r\nConnection: close\r\n\r\n"))
		io.Copy(io.Discard, clientConn)
	}()
}

func TestDispatcherConcurrency(t *testing.T) {
	testCases := []struct {
		name       string
		dispatcher func() Dispatcher
		maxPeak    int32
		minPeak    int32
	}{
		{"single worker", func() Dispatcher { return NewSingleWorkerDispatcher() }, 1, 1},
		{"fixed pool", func() Dispatcher { return NewFixedPoolDispatcher(2) }, 2, 1},
		{"unbounded", func() Dispatcher { return NewUnboundedDispatcher() }, 4, 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := tc.dispatcher()
			d.Start()

			probe := &concurrencyProbe{}
			var wg sync.WaitGroup
			for range 4 {
				roundTrip(t, d, probe, &wg)
			}
			wg.Wait()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := d.Shutdown(ctx); err != nil {
				t.Fatal(err)
			}

			peak := probe.peak.Load()
			if peak > tc.maxPeak || peak < tc.minPeak {
				t.Errorf("peak concurrency = %d, want between %d and %d", peak, tc.minPeak, tc.maxPeak)
			}
		})
	}
}

func TestInlineDispatcherServesOnCaller(t *testing.T) {
	d := NewInlineDispatcher()
	d.Start()

	serverConn, clientConn := net.Pipe()
	clientConn.Close()

	done := false
	handler := RequestHandlerFunc(func(req *Request) (*Response, error) {
		done = true
		return nil, errors.New("unreachable")
	})

	if err := d.Dispatch(&Unit{Conn: serverConn, Handler: handler}); err != nil {
		t.Fatal(err)
	}
	if done {
		t.Error("handler ran without a request")
	}
	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestDispatcherRejectsAfterShutdown(t *testing.T) {
	dispatchers := map[string]Dispatcher{
		"inline":    NewInlineDispatcher(),
		"unbounded": NewUnboundedDispatcher(),
		"pool":      NewFixedPoolDispatcher(2),
	}

	for name, d := range dispatchers {
		t.Run(name, func(t *testing.T) {
			d.Start()
			if err := d.Shutdown(context.Background()); err != nil {
				t.Fatal(err)
			}
			// a second shutdown is a no-op
			if err := d.Shutdown(context.Background()); err != nil {
				t.Fatal(err)
			}

			serverConn, clientConn := net.Pipe()
			defer clientConn.Close()

			err := d.Dispatch(&Unit{Conn: serverConn})
			if !errors.Is(err, ErrDispatcherClosed) {
				t.Fatalf("Dispatch = %v, want ErrDispatcherClosed", err)
			}

			clientConn.SetReadDeadline(time.Now().Add(time.Second))
			if _, err := clientConn.Read(make([]byte, 1)); err != io.EOF {
				t.Errorf("expected the rejected connection to be closed, got %v", err)
			}
		})
	}
}

func TestDispatcherShutdownClosesIdleConnections(t *testing.T) {
	d := NewUnboundedDispatcher()
	d.Start()

	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()
	if err := d.Dispatch(&Unit{Conn: serverConn, Handler: &concurrencyProbe{}}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := d.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("shutdown took %v", elapsed)
	}

	clientConn.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := clientConn.Read(make([]byte, 1)); err != io.EOF {
		t.Errorf("expected the idle connection to be closed, got %v", err)
	}
}

func TestPoolDispatcherShutdownDuringDispatch(t *testing.T) {
	for range 20 {
		d := NewFixedPoolDispatcher(1)
		d.Start()

		var wg sync.WaitGroup
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				serverConn, clientConn := net.Pipe()
				clientConn.Close()
				d.Dispatch(&Unit{Conn: serverConn, Handler: &concurrencyProbe{}})
			}()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		start := time.Now()
		if err := d.Shutdown(ctx); err != nil {
			t.Fatal(err)
		}
		wg.Wait()
		// a late unit must not hold the tracker open
		d.wait(ctx)
		cancel()

		if elapsed := time.Since(start); elapsed > 2*time.Second {
			t.Fatalf("shutdown took %v with connections racing into the queue", elapsed)
		}
	}
}
