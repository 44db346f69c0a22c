package connections

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write the response message to the peer.
	wsWriteWait = 10 * time.Second
	// Largest acceptable request message.
	wsReadLimit = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The framed protocol carries no browser credentials, so cross-origin
	// requests are not a concern here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConnection adapts one websocket exchange to the Connection interface:
// a single binary message is the request, the buffered response goes back
// as a single binary message on Close.
type wsConnection struct {
	ws   *websocket.Conn
	req  *bytes.Reader
	resp bytes.Buffer
}

func (c *wsConnection) Read(p []byte) (int, error) {
	return c.req.Read(p)
}

func (c *wsConnection) Write(p []byte) (int, error) {
	return c.resp.Write(p)
}

func (c *wsConnection) Close() error {
	c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if c.resp.Len() > 0 {
		if err := c.ws.WriteMessage(websocket.BinaryMessage, c.resp.Bytes()); err != nil {
			c.ws.Close()
			return err
		}
	}
	return c.ws.Close()
}

// ServeWebsocket returns an http.Handler that upgrades each request,
// reads one binary message and passes it to h as a Connection.
func ServeWebsocket(h Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("ws upgrade failed", zap.Error(err))
			return
		}
		ws.SetReadLimit(wsReadLimit)

		mt, raw, err := ws.ReadMessage()
		if err != nil || mt != websocket.BinaryMessage {
			if err != nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("ws read failed", zap.Error(err))
			}
			ws.Close()
			return
		}

		h(&wsConnection{ws: ws, req: bytes.NewReader(raw)})
	})
}
