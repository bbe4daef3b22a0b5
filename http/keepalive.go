package http

import (
	"net"
	"time"
)

// KeepAliveStrategy decides how long an idle connection waits for its next
// request. reuse counts the requests already served on the connection.
// A non-positive timeout means the connection is not reused.
type KeepAliveStrategy interface {
	Timeout(reuse int) time.Duration
}

type KeepAliveFunc func(reuse int) time.Duration

func (f KeepAliveFunc) Timeout(reuse int) time.Duration {
	return f(reuse)
}

var (
	// DefaultKeepAlive waits 30s for the first request and 5s between later ones.
	DefaultKeepAlive KeepAliveStrategy = KeepAliveFunc(func(reuse int) time.Duration {
		if reuse == 0 {
			return 30 * time.Second
		}
		return 5 * time.Second
	})

	// NoKeepAlive serves a single request per connection.
	NoKeepAlive KeepAliveStrategy = KeepAliveFunc(func(int) time.Duration {
		return 0
	})
)

// useAgain arms the read deadline for the next request on conn. The first
// request on a connection is always read, even without a timeout.
func useAgain(conn net.Conn, reuse int, strategy KeepAliveStrategy) bool {
	timeout := strategy.Timeout(reuse)
	if timeout <= 0 {
		if reuse == 0 {
			conn.SetReadDeadline(time.Time{})
			return true
		}
		return false
	}

	conn.SetReadDeadline(time.Now().Add(timeout))
	return true
}
