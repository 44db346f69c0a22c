package relay

import (
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/rivulet/chat/server/store/types"
	"github.com/rivulet/chat/server/wire"
)

const dialTimeout = 10 * time.Second

// Largest bundle count accepted from a relay before allocating for it.
const maxReadBatch = 1 << 16

// Client talks to a relay daemon over the framed wire codec, one
// request/response exchange per connection.
type Client struct {
	addr   string
	logger *zap.Logger
}

// NewClient returns a client for the relay at addr.
func NewClient(addr string, logger *zap.Logger) *Client {
	return &Client{addr: addr, logger: logger}
}

// Read implements Relay.
func (c *Client) Read(server types.Uid, secret string, after types.Uid, limit int) ([]Bundle, error) {
	conn, err := net.DialTimeout("tcp", c.addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("relay: dial %s: %w", c.addr, err)
	}
	defer conn.Close()

	if err := wire.WriteUint32(conn, wire.RelayReadRequest); err != nil {
		return nil, err
	}
	if err := wire.WriteUid(conn, server); err != nil {
		return nil, err
	}
	if err := wire.WriteString(conn, secret); err != nil {
		return nil, err
	}
	if err := wire.WriteUid(conn, after); err != nil {
		return nil, err
	}
	if err := wire.WriteUint32(conn, uint32(limit)); err != nil {
		return nil, err
	}

	code, err := wire.ReadUint32(conn)
	if err != nil {
		return nil, err
	}
	if code != wire.RelayReadResponse {
		return nil, fmt.Errorf("relay: unexpected response code %d", code)
	}
	status, err := wire.ReadByte(conn)
	if err != nil {
		return nil, err
	}
	if status != wire.StatusOK {
		return nil, fmt.Errorf("relay: read rejected: %w", wire.StatusError(status))
	}

	n, err := wire.ReadUint32(conn)
	if err != nil {
		return nil, err
	}
	if n > maxReadBatch {
		return nil, fmt.Errorf("%w: bundle count %d", types.ErrMalformed, n)
	}
	bundles := make([]Bundle, 0, n)
	for i := uint32(0); i < n; i++ {
		b, err := ReadBundle(conn)
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, b)
	}
	return bundles, nil
}

// Write implements Relay.
func (c *Client) Write(server types.Uid, secret string, user, conversation, message Component) error {
	conn, err := net.DialTimeout("tcp", c.addr, dialTimeout)
	if err != nil {
		return fmt.Errorf("relay: dial %s: %w", c.addr, err)
	}
	defer conn.Close()

	if err := wire.WriteUint32(conn, wire.RelayWriteRequest); err != nil {
		return err
	}
	if err := wire.WriteUid(conn, server); err != nil {
		return err
	}
	if err := wire.WriteString(conn, secret); err != nil {
		return err
	}
	for _, comp := range []Component{user, conversation, message} {
		if err := WriteComponent(conn, comp); err != nil {
			return err
		}
	}

	code, err := wire.ReadUint32(conn)
	if err != nil {
		return err
	}
	if code != wire.RelayWriteResponse {
		return fmt.Errorf("relay: unexpected response code %d", code)
	}
	status, err := wire.ReadByte(conn)
	if err != nil {
		return err
	}
	if status != wire.StatusOK {
		return fmt.Errorf("relay: write rejected: %w", wire.StatusError(status))
	}
	return nil
}

// ServeConn handles one relay request/response exchange on conn against
// the given backing relay, then returns. The relay daemon runs this per
// accepted connection.
func ServeConn(conn net.Conn, r Relay, logger *zap.Logger) {
	defer conn.Close()

	code, err := wire.ReadUint32(conn)
	if err != nil {
		logger.Warn("short request", zap.Error(err))
		return
	}

	switch code {
	case wire.RelayReadRequest:
		server, secret, after, limit, err := readReadRequest(conn)
		if err != nil {
			logger.Warn("malformed read request", zap.Error(err))
			return
		}
		bundles, err := r.Read(server, secret, after, limit)
		if err != nil {
			wire.WriteUint32(conn, wire.RelayReadResponse)
			wire.WriteByte(conn, statusByte(err))
			return
		}
		if err := wire.WriteUint32(conn, wire.RelayReadResponse); err != nil {
			return
		}
		if err := wire.WriteByte(conn, wire.StatusOK); err != nil {
			return
		}
		if err := wire.WriteUint32(conn, uint32(len(bundles))); err != nil {
			return
		}
		for _, b := range bundles {
			if err := WriteBundle(conn, b); err != nil {
				logger.Warn("write bundle", zap.Error(err))
				return
			}
		}

	case wire.RelayWriteRequest:
		server, err := wire.ReadUid(conn)
		if err != nil {
			return
		}
		secret, err := wire.ReadString(conn)
		if err != nil {
			return
		}
		var comps [3]Component
		for i := range comps {
			if comps[i], err = ReadComponent(conn); err != nil {
				logger.Warn("malformed write request", zap.Error(err))
				return
			}
		}
		werr := r.Write(server, secret, comps[0], comps[1], comps[2])
		wire.WriteUint32(conn, wire.RelayWriteResponse)
		wire.WriteByte(conn, statusByte(werr))

	default:
		wire.WriteUint32(conn, wire.NoMessage)
	}
}

func readReadRequest(conn net.Conn) (server types.Uid, secret string, after types.Uid, limit int, err error) {
	if server, err = wire.ReadUid(conn); err != nil {
		return
	}
	if secret, err = wire.ReadString(conn); err != nil {
		return
	}
	if after, err = wire.ReadUid(conn); err != nil {
		return
	}
	var n uint32
	if n, err = wire.ReadUint32(conn); err != nil {
		return
	}
	limit = int(n)
	return
}

func statusByte(err error) byte {
	switch {
	case err == nil:
		return wire.StatusOK
	case errors.Is(err, ErrBadSecret):
		return wire.StatusInsufficientPermission
	default:
		return wire.StatusFailed
	}
}
