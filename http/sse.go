package http

import (
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	MediaTypeEventStream = "text/event-stream"

	DefaultRetry        = 3 * time.Second
	DefaultHeartbeat    = 15 * time.Second
	eventStreamCapacity = 64
)

var ErrStreamClosed = errors.New("http: event stream closed")

var heartbeatLine = []byte(":\n")

// EventStream is a server-sent events body. Events are queued with Send and
// written until Close; the body has no declared length. An idle stream
// writes a comment line every heartbeat so a gone client ends it.
type EventStream struct {
	retry     time.Duration
	heartbeat time.Duration
	events    chan string
	done   chan struct{}
	once   sync.Once
}

func NewEventStream(retry time.Duration) *EventStream {
	if retry <= 0 {
		retry = DefaultRetry
	}
	return &EventStream{
		retry:     retry,
		heartbeat: DefaultHeartbeat,
		events:    make(chan string, eventStreamCapacity),
		done:      make(chan struct{}),
	}
}

// WithHeartbeat sets the idle interval between comment lines. It must be
// called before the stream is written.
func (s *EventStream) WithHeartbeat(d time.Duration) *EventStream {
	if d > 0 {
		s.heartbeat = d
	}
	return s
}

func (s *EventStream) ContentType() string  { return MediaTypeEventStream }
func (s *EventStream) ContentLength() int64 { return -1 }

func (s *EventStream) WriteBody(w BodyWriter) error {
	defer s.Close()

	if _, err := w.Write([]byte("retry: " + strconv.FormatInt(s.retry.Milliseconds(), 10) + "\n")); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		var payload []byte
		select {
		case data := <-s.events:
			payload = encodeEvent(data)
			ticker.Reset(s.heartbeat)
		case <-ticker.C:
			payload = heartbeatLine
		case <-s.done:
			return nil
		}

		if _, err := w.Write(payload); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
}

// Send queues one event. It blocks while the queue is full.
func (s *EventStream) Send(data string) error {
	select {
	case <-s.done:
		return ErrStreamClosed
	default:
	}

	select {
	case s.events <- data:
		return nil
	case <-s.done:
		return ErrStreamClosed
	}
}

// Close ends the stream. Queued events that were not written are dropped.
func (s *EventStream) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *EventStream) Done() <-chan struct{} {
	return s.done
}

func encodeEvent(data string) []byte {
	var sb strings.Builder
	for _, line := range strings.Split(data, "\n") {
		sb.WriteString("data: ")
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
	return []byte(sb.String())
}

// SSE answers a request with an event stream.
func SSE(stream *EventStream) *ResponseBuilder {
	return NewResponseBuilder().
		WithStatus(StatusOK).
		WithHeader(HeaderCacheControl, "no-cache").
		WithHeader(HeaderConnection, keepAlive).
		WithHeader("Access-Control-Allow-Origin", "*").
		WithHeader("Access-Control-Allow-Methods", MethodGet).
		WithHeader("Access-Control-Allow-Headers", "Content-Type, Accept").
		WithBody(stream)
}

// EventSource fans events out to every subscribed stream. Subscribers whose
// queue is full are dropped.
type EventSource struct {
	retry time.Duration
	// Heartbeat is passed to every subscribed stream.
	Heartbeat time.Duration

	mu      sync.Mutex
	streams map[*EventStream]struct{}
}

func NewEventSource(retry time.Duration) *EventSource {
	return &EventSource{
		retry:   retry,
		streams: make(map[*EventStream]struct{}),
	}
}

func (es *EventSource) Subscribe() *EventStream {
	stream := NewEventStream(es.retry).WithHeartbeat(es.Heartbeat)

	es.mu.Lock()
	es.streams[stream] = struct{}{}
	es.mu.Unlock()

	go func() {
		<-stream.Done()
		es.mu.Lock()
		delete(es.streams, stream)
		es.mu.Unlock()
	}()
	return stream
}

// Respond subscribes a new stream and returns the response carrying it.
func (es *EventSource) Respond() *ResponseBuilder {
	return SSE(es.Subscribe())
}

func (es *EventSource) Write(data string) {
	es.mu.Lock()
	defer es.mu.Unlock()

	for stream := range es.streams {
		select {
		case stream.events <- data:
		case <-stream.done:
		default:
			stream.Close()
		}
	}
}

// End closes every stream.
func (es *EventSource) End() {
	es.mu.Lock()
	defer es.mu.Unlock()

	for stream := range es.streams {
		stream.Close()
	}
}

func (es *EventSource) Len() int {
	es.mu.Lock()
	defer es.mu.Unlock()
	return len(es.streams)
}
