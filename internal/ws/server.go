package ws

import (
	"net/http"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"github.com/sirupsen/logrus"

	"agentmesh/internal/logging"
)

const namespace = "/"

// BacklogSize is how many recent events a reconnecting client can catch up on.
const BacklogSize = 500

// Hub is the Socket.IO server behind the live trust/audit feed. It implements
// registry.Publisher.
type Hub struct {
	server  *socketio.Server
	backlog *backlog
	logger  *logrus.Entry
}

// NewHub builds the Socket.IO server and registers its handlers. Call Start
// before serving requests.
func NewHub(logger *logrus.Entry) *Hub {
	if logger == nil {
		logger = logging.Discard()
	}
	allowAll := func(r *http.Request) bool { return true }
	server := socketio.NewServer(&engineio.Options{
		Transports: []transport.Transport{
			&polling.Transport{CheckOrigin: allowAll},
			&websocket.Transport{CheckOrigin: allowAll},
		},
	})

	h := &Hub{
		server:  server,
		backlog: newBacklog(BacklogSize),
		logger:  logger,
	}

	server.OnConnect(namespace, func(s socketio.Conn) error {
		h.logger.WithField("conn", s.ID()).Debug("Client connected")
		s.Emit("connected", map[string]interface{}{
			"ok":          true,
			"lastEventId": h.backlog.Latest(),
		})
		return nil
	})
	server.OnDisconnect(namespace, func(s socketio.Conn, reason string) {
		h.logger.WithFields(logrus.Fields{"conn": s.ID(), "reason": reason}).Debug("Client disconnected")
	})
	server.OnError(namespace, func(s socketio.Conn, e error) {
		id := ""
		if s != nil {
			id = s.ID()
		}
		h.logger.WithField("conn", id).WithError(e).Warn("Socket error")
	})
	h.registerEventHandlers()

	return h
}

func (h *Hub) registerEventHandlers() {
	h.server.OnEvent(namespace, "subscribe", h.handleSubscribe)
	h.server.OnEvent(namespace, "unsubscribe", h.handleUnsubscribe)
	h.server.OnEvent(namespace, "request:events", h.handleRequestEvents)
}

// Start runs the Socket.IO event loop in the background.
func (h *Hub) Start() {
	go func() {
		if err := h.server.Serve(); err != nil {
			h.logger.WithError(err).Error("Socket.IO server stopped")
		}
	}()
	h.logger.Info("Socket.IO server initialized")
}

// Close stops the event loop and drops all connections.
func (h *Hub) Close() error {
	return h.server.Close()
}

// ServeHTTP serves /socket.io/ without authentication; see WrapWithAuth.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.server.ServeHTTP(w, r)
}

func agentRoom(did string) string { return "agent:" + did }
