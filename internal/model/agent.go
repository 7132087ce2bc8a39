package model

import "time"

// AgentStatus is the lifecycle state of a registered agent.
type AgentStatus string

const (
	AgentStatusPending   AgentStatus = "pending"
	AgentStatusActive    AgentStatus = "active"
	AgentStatusSuspended AgentStatus = "suspended"
	AgentStatusRevoked   AgentStatus = "revoked"
)

// ParseAgentStatus validates an externally supplied status.
func ParseAgentStatus(s string) (AgentStatus, bool) {
	switch st := AgentStatus(s); st {
	case AgentStatusPending, AgentStatusActive, AgentStatusSuspended, AgentStatusRevoked:
		return st, true
	}
	return "", false
}

// Blocked reports whether the status must fail every handshake.
func (s AgentStatus) Blocked() bool {
	return s == AgentStatusSuspended || s == AgentStatusRevoked
}

// Agent is the registry's canonical record for one agent. The API key is
// never stored, only its SHA-256.
type Agent struct {
	DID          string            `json:"did"`
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	SponsorEmail string            `json:"sponsor_email"`
	PublicKey    string            `json:"public_key"`
	APIKeyHash   string            `json:"api_key_hash"`
	Capabilities []string          `json:"capabilities"`
	Status       AgentStatus       `json:"status"`
	StatusReason string            `json:"status_reason,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	LastActive   *time.Time        `json:"last_active,omitempty"`
}

// Clone returns a deep copy so cached records are never shared.
func (a *Agent) Clone() *Agent {
	if a == nil {
		return nil
	}
	c := *a
	c.Capabilities = append([]string(nil), a.Capabilities...)
	if a.Metadata != nil {
		c.Metadata = make(map[string]string, len(a.Metadata))
		for k, v := range a.Metadata {
			c.Metadata[k] = v
		}
	}
	if a.LastActive != nil {
		t := *a.LastActive
		c.LastActive = &t
	}
	return &c
}
