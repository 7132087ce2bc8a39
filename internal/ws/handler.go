package ws

import (
	socketio "github.com/googollee/go-socket.io"

	"agentmesh/internal/identity"
)

// SubscribeData is the payload of subscribe / unsubscribe.
type SubscribeData struct {
	AgentDID string `json:"agent_did"`
}

// RequestEventsData is the payload of request:events.
type RequestEventsData struct {
	LastEventID int64 `json:"lastEventId"`
}

func (h *Hub) handleSubscribe(s socketio.Conn, data SubscribeData) {
	if !identity.ValidDID(data.AgentDID) {
		s.Emit("error", map[string]interface{}{"message": "invalid agent_did"})
		return
	}
	s.Join(agentRoom(data.AgentDID))
	s.Emit("subscribed", map[string]interface{}{"agent_did": data.AgentDID})
	h.logger.WithField("conn", s.ID()).WithField("did", data.AgentDID).Debug("Client subscribed")
}

func (h *Hub) handleUnsubscribe(s socketio.Conn, data SubscribeData) {
	s.Leave(agentRoom(data.AgentDID))
	s.Emit("unsubscribed", map[string]interface{}{"agent_did": data.AgentDID})
}

// handleRequestEvents replays everything after lastEventId. If the backlog no
// longer reaches back that far the client gets events:reset and must re-read
// state over HTTP.
func (h *Hub) handleRequestEvents(s socketio.Conn, data RequestEventsData) {
	msgs, ok := h.backlog.Since(data.LastEventID)
	if !ok {
		s.Emit("events:reset", map[string]interface{}{"lastEventId": h.backlog.Latest()})
		return
	}
	for _, m := range msgs {
		s.Emit(m.Topic, m)
	}
	s.Emit("events:synced", map[string]interface{}{
		"count":       len(msgs),
		"lastEventId": h.backlog.Latest(),
	})
}
