package registry

import (
	"time"

	"agentmesh/internal/audit"
	"agentmesh/internal/trust"
)

// TierUnknown is reported for DIDs the registry has never seen.
const TierUnknown = "Unknown"

// RegisterRequest is the input of Register.
type RegisterRequest struct {
	Name         string            `json:"name"`
	SponsorEmail string            `json:"sponsor_email"`
	Description  string            `json:"description,omitempty"`
	Capabilities []string          `json:"capabilities,omitempty"`
	PublicKey    string            `json:"public_key"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// RegisterResponse carries the API key; it is the only time it is revealed.
type RegisterResponse struct {
	AgentDID          string    `json:"agent_did"`
	APIKey            string    `json:"api_key"`
	Status            string    `json:"status"`
	TrustScore        int       `json:"trust_score"`
	Tier              string    `json:"tier"`
	Capabilities      []string  `json:"capabilities"`
	Challenge         string    `json:"challenge"`
	RegistryPublicKey string    `json:"registry_public_key"`
	CreatedAt         time.Time `json:"created_at"`
}

// VerifyResponse is the public view of a registered agent.
type VerifyResponse struct {
	Registered   bool       `json:"registered"`
	DID          string     `json:"did"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	Sponsor      string     `json:"sponsor"`
	Status       string     `json:"status"`
	TrustScore   int        `json:"trust_score"`
	Tier         string     `json:"tier"`
	Capabilities []string   `json:"capabilities"`
	PublicKey    string     `json:"public_key"`
	CreatedAt    time.Time  `json:"created_at"`
	LastActive   *time.Time `json:"last_active,omitempty"`
}

// HandshakeRequest is one challenge/response attempt.
type HandshakeRequest struct {
	AgentDID              string   `json:"agent_did"`
	Challenge             string   `json:"challenge"`
	Signature             string   `json:"signature,omitempty"`
	CapabilitiesRequested []string `json:"capabilities_requested,omitempty"`
}

// HandshakeResult is returned on success and attached to every handshake
// error that has a known agent behind it.
type HandshakeResult struct {
	Verified            bool       `json:"verified"`
	AgentDID            string     `json:"agent_did"`
	TrustScore          int        `json:"trust_score"`
	Tier                string     `json:"tier"`
	CapabilitiesGranted []string   `json:"capabilities_granted"`
	Signature           string     `json:"signature,omitempty"`
	Challenge           string     `json:"challenge,omitempty"`
	SessionToken        string     `json:"session_token,omitempty"`
	ExpiresIn           int        `json:"expires_in,omitempty"`
	ExpiresAt           *time.Time `json:"expires_at,omitempty"`
	Timestamp           int64      `json:"timestamp,omitempty"`
	Error               string     `json:"error,omitempty"`
}

// ChallengeResponse is a registry-issued nonce.
type ChallengeResponse struct {
	AgentDID  string `json:"agent_did"`
	Challenge string `json:"challenge"`
	ExpiresIn int    `json:"expires_in"`
}

// ScoreResponse is the score query result.
type ScoreResponse struct {
	AgentDID        string           `json:"agent_did"`
	Name            string           `json:"name"`
	Total           int              `json:"total"`
	Tier            string           `json:"tier"`
	Formatted       string           `json:"formatted"`
	Dimensions      trust.Dimensions `json:"dimensions"`
	LastUpdated     time.Time        `json:"last_updated"`
	Recommendations []string         `json:"recommendations"`
}

// AuditResponse is the audit query result. MerkleRoot is the chain tip.
type AuditResponse struct {
	AgentDID   string        `json:"agent_did"`
	Name       string        `json:"name"`
	EntryCount int           `json:"entry_count"`
	MerkleRoot *string       `json:"merkle_root"`
	Entries    []audit.Entry `json:"entries"`
	Complete   bool          `json:"complete"`
	ChainValid *bool         `json:"chain_valid,omitempty"`
}

// EventRequest is an admin-reported trust event.
type EventRequest struct {
	AgentDID string `json:"agent_did"`
	Type     string `json:"type"`
	Severity string `json:"severity,omitempty"`
	Details  string `json:"details,omitempty"`
}

// EventResult shows the effect of a recorded event.
type EventResult struct {
	AgentDID string      `json:"agent_did"`
	Event    trust.Event `json:"event"`
	Before   trust.Score `json:"before"`
	After    trust.Score `json:"after"`
}

// StatusRequest changes an agent's lifecycle status.
type StatusRequest struct {
	AgentDID string `json:"agent_did"`
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
}

// Stats are the global counters.
type Stats struct {
	RegisteredAgents int64 `json:"registered_agents"`
	Handshakes       int64 `json:"handshakes"`
	FailedHandshakes int64 `json:"failed_handshakes"`
}
