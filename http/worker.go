package http

import (
	"bufio"
	"errors"
	"net"
	"runtime"
	"sync/atomic"
)

const ConnCtxPoolSize = 1024 // must be a power of 2

// ConnCtx holds the buffered reader and writer of one HTTP/1 connection.
// Contexts are recycled through connCtxPool once the connection is done.
type ConnCtx struct {
	Conn       net.Conn
	ConnReader *bufio.Reader
	ConnWriter *bufio.Writer
}

func (connCtx *ConnCtx) Reset(conn net.Conn) {
	connCtx.Conn = conn
	connCtx.ConnReader.Reset(conn)
	connCtx.ConnWriter.Reset(conn)
}

var connCtxPool = NewRingBuffer[*ConnCtx]()

func acquireConnCtx(conn net.Conn) *ConnCtx {
	connCtx, err := connCtxPool.Dequeue()
	if err != nil {
		connCtx = &ConnCtx{
			ConnReader: bufio.NewReaderSize(nil, DefaultReadBufferSize),
			ConnWriter: bufio.NewWriterSize(nil, DefaultWriteBufferSize),
		}
	}
	connCtx.Reset(conn)
	return connCtx
}

func releaseConnCtx(connCtx *ConnCtx) {
	connCtx.Reset(nil)
	// A full pool drops the context for the garbage collector.
	_ = connCtxPool.Enqueue(connCtx)
}

var (
	ErrFull  = errors.New("http: ring buffer is full")
	ErrEmpty = errors.New("http: ring buffer is empty")
)

// RingBuffer is a bounded lock-free multi-producer multi-consumer queue.
type RingBuffer[T any] struct {
	buffer [ConnCtxPoolSize]slot[T]
	mask   uint64
	enqPos uint64
	deqPos uint64
}

type slot[T any] struct {
	sequence uint64
	value    T
}

func NewRingBuffer[T any]() *RingBuffer[T] {
	q := &RingBuffer[T]{mask: ConnCtxPoolSize - 1}
	for i := range q.buffer {
		q.buffer[i].sequence = uint64(i)
	}
	return q
}

// Enqueue adds an item to the ring buffer
func (q *RingBuffer[T]) Enqueue(val T) error {
	for {
		pos := atomic.LoadUint64(&q.enqPos)
		slot := &q.buffer[pos&q.mask]

		seq := atomic.LoadUint64(&slot.sequence)
		delta := int64(seq) - int64(pos)

		if delta == 0 {
			if atomic.CompareAndSwapUint64(&q.enqPos, pos, pos+1) {
				slot.value = val
				atomic.StoreUint64(&slot.sequence, pos+1)
				return nil
			}
		} else if delta < 0 {
			return ErrFull
		} else {
			runtime.Gosched()
		}
	}
}

// Dequeue removes and returns the oldest item
func (q *RingBuffer[T]) Dequeue() (T, error) {
	var zero T
	for {
		pos := atomic.LoadUint64(&q.deqPos)
		slot := &q.buffer[pos&q.mask]

		seq := atomic.LoadUint64(&slot.sequence)
		delta := int64(seq) - int64(pos+1)

		if delta == 0 {
			if atomic.CompareAndSwapUint64(&q.deqPos, pos, pos+1) {
				val := slot.value
				slot.value = zero
				atomic.StoreUint64(&slot.sequence, pos+q.mask+1)
				return val, nil
			}
		} else if delta < 0 {
			return zero, ErrEmpty
		} else {
			runtime.Gosched()
		}
	}
}
