package ws

import (
	"time"

	"github.com/sirupsen/logrus"

	"agentmesh/internal/registry"
)

// Publish broadcasts ev to every client and to the agent's room. It never
// blocks the caller on slow clients.
func (h *Hub) Publish(ev registry.Event) {
	msg := h.backlog.Add(Message{
		Topic:     ev.Topic,
		AgentDID:  ev.AgentDID,
		Data:      ev.Payload,
		Timestamp: ev.Timestamp.UTC().Format(time.RFC3339Nano),
	})

	h.server.BroadcastToNamespace(namespace, ev.Topic, msg)
	if ev.AgentDID != "" {
		h.server.BroadcastToRoom(namespace, agentRoom(ev.AgentDID), "agent:update", msg)
	}

	h.logger.WithFields(logrus.Fields{
		"eventId": msg.EventID,
		"topic":   ev.Topic,
		"did":     ev.AgentDID,
	}).Debug("Event broadcasted")
}

var _ registry.Publisher = (*Hub)(nil)
