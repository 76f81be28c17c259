package server

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/codeblock-sh/codeblock/internal/boundary"
	"github.com/codeblock-sh/codeblock/internal/codec"
	"github.com/codeblock-sh/codeblock/internal/monitoring"
	"github.com/codeblock-sh/codeblock/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsTransport frames boundary messages as binary CBOR over a websocket.
type wsTransport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (t *wsTransport) Send(m boundary.Message) error {
	data, err := codec.Marshal(m)
	if err != nil {
		return err
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (t *wsTransport) Receive() (boundary.Message, error) {
	var m boundary.Message
	for {
		kind, data, err := t.conn.ReadMessage()
		if err != nil {
			return m, err
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		if err := codec.Unmarshal(data, &m); err != nil {
			return m, err
		}
		return m, nil
	}
}

func (t *wsTransport) Close() error { return t.conn.Close() }

// WSHandler upgrades editor connections and attaches each to the host.
type WSHandler struct {
	host    *store.Host
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

func NewWSHandler(host *store.Host, metrics *monitoring.Metrics, logger *zap.Logger) *WSHandler {
	return &WSHandler{host: host, metrics: metrics, logger: logger}
}

func (h *WSHandler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	ep := boundary.NewEndpoint(&wsTransport{conn: conn}, boundary.DefaultRegistry(), h.logger)
	h.host.Attach(ep)

	h.metrics.SessionOpened()
	h.logger.Info("session opened", zap.String("remote", conn.RemoteAddr().String()))

	ep.Start()
	<-ep.Done()

	h.metrics.SessionClosed()
	h.logger.Info("session closed", zap.String("remote", conn.RemoteAddr().String()))
}
