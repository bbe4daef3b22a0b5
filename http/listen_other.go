//go:build !unix

package http

import "syscall"

func listenControl(reusePort bool) func(network, address string, c syscall.RawConn) error {
	if reusePort {
		logger.Warn("server: SO_REUSEPORT is not supported on this platform")
	}
	return nil
}
