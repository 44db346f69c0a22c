// Package connections abstracts a single request/response exchange over a
// byte stream, so the dispatcher can serve TCP sockets and websocket
// clients through the same framed codec.
package connections

import (
	"io"
	"net"

	"go.uber.org/zap"
)

// Connection is one client exchange: read the request, write the
// response, close. net.Conn satisfies it directly.
type Connection interface {
	io.Reader
	io.Writer
	Close() error
}

// Handler receives an accepted connection. It must eventually close it.
type Handler func(Connection)

// ServeTCP accepts connections from l and hands each to h. It returns
// when the listener is closed. Accepting is the only thing this goroutine
// does; the handler is responsible for scheduling any model work onto the
// serialization point.
func ServeTCP(l net.Listener, h Handler, logger *zap.Logger) {
	for {
		conn, err := l.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			logger.Info("listener closed", zap.Error(err))
			return
		}
		h(conn)
	}
}
