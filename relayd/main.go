// relayd is the store-and-forward relay daemon: it keeps an ordered log
// of bundles in memory and serves the relay read/write exchanges over the
// framed wire codec, one request per connection.
package main

import (
	"flag"
	"log"
	"net"

	"go.uber.org/zap"

	"github.com/rivulet/chat/server/relay"
)

func main() {
	listenOn := flag.String("listen", ":2552", "Address to listen on.")
	secret := flag.String("secret", "", "Shared secret required from servers; empty accepts all.")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to initialize logging: ", err)
	}
	defer logger.Sync()

	listener, err := net.Listen("tcp", *listenOn)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("addr", *listenOn), zap.Error(err))
	}

	backing := relay.NewMemRelay(*secret)
	logger.Info("relayd started", zap.String("listen", *listenOn))

	for {
		conn, err := listener.Accept()
		if err != nil {
			logger.Fatal("accept failed", zap.Error(err))
		}
		go relay.ServeConn(conn, backing, logger.Named("conn"))
	}
}
