package model

import (
	"testing"
	"time"
)

func TestAgentStatusBlocked(t *testing.T) {
	tests := map[AgentStatus]bool{
		AgentStatusPending:   false,
		AgentStatusActive:    false,
		AgentStatusSuspended: true,
		AgentStatusRevoked:   true,
	}
	for st, want := range tests {
		if st.Blocked() != want {
			t.Errorf("%s.Blocked() = %v, want %v", st, !want, want)
		}
	}
}

func TestParseAgentStatus(t *testing.T) {
	if st, ok := ParseAgentStatus("revoked"); !ok || st != AgentStatusRevoked {
		t.Errorf("Expected revoked, got %q %v", st, ok)
	}
	if _, ok := ParseAgentStatus("pending_verification"); ok {
		t.Error("Expected unknown status to be rejected")
	}
}

func TestAgentClone(t *testing.T) {
	now := time.Now()
	a := &Agent{
		DID:          "did:mesh:abc",
		Capabilities: []string{"basic"},
		Metadata:     map[string]string{"team": "x"},
		LastActive:   &now,
	}
	c := a.Clone()
	c.Capabilities[0] = "admin"
	c.Metadata["team"] = "y"
	*c.LastActive = now.Add(time.Hour)

	if a.Capabilities[0] != "basic" || a.Metadata["team"] != "x" || !a.LastActive.Equal(now) {
		t.Error("Clone shares state with the original")
	}
	if (*Agent)(nil).Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}

func TestKVEntryExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Second)
	e := &KVEntry{ExpiresAt: &past}
	if !e.Expired(now) {
		t.Error("Expected entry to be expired")
	}
	if (&KVEntry{}).Expired(now) {
		t.Error("entry without expiry never expires")
	}
}
