package registry

import "time"

// Live feed topics
const (
	TopicAgentRegistered = "agent.registered"
	TopicHandshake       = "handshake"
	TopicTrustUpdated    = "trust.updated"
	TopicStatusChanged   = "status.changed"
	TopicKeyRotated      = "key.rotated"
	TopicAudit           = "audit.appended"
)

// Event is pushed to subscribers after a state change is persisted.
type Event struct {
	Topic     string    `json:"topic"`
	AgentDID  string    `json:"agent_did"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher fans events out to live subscribers. Publish must not block.
type Publisher interface {
	Publish(ev Event)
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}
