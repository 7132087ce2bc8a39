package ws

import (
	"testing"
	"time"

	"agentmesh/internal/registry"
)

func TestBacklog_Since(t *testing.T) {
	b := newBacklog(3)
	for i := 0; i < 5; i++ {
		b.Add(Message{Topic: "handshake"})
	}
	if b.Latest() != 5 {
		t.Fatalf("Expected latest 5, got %d", b.Latest())
	}

	tests := []struct {
		name    string
		lastID  int64
		wantIDs []int64
		wantOK  bool
	}{
		{"up to date", 5, nil, true},
		{"ahead", 9, nil, true},
		{"within window", 3, []int64{4, 5}, true},
		{"window start", 2, []int64{3, 4, 5}, true},
		{"evicted", 1, nil, false},
		{"from zero", 0, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, ok := b.Since(tt.lastID)
			if ok != tt.wantOK {
				t.Fatalf("Expected ok=%v, got %v", tt.wantOK, ok)
			}
			if len(msgs) != len(tt.wantIDs) {
				t.Fatalf("Expected %d messages, got %d", len(tt.wantIDs), len(msgs))
			}
			for i, m := range msgs {
				if m.EventID != tt.wantIDs[i] {
					t.Errorf("Expected id %d, got %d", tt.wantIDs[i], m.EventID)
				}
			}
		})
	}
}

func TestBacklog_EmptyFromZero(t *testing.T) {
	b := newBacklog(3)
	msgs, ok := b.Since(0)
	if !ok || len(msgs) != 0 {
		t.Errorf("Expected empty ok result, got %v %v", msgs, ok)
	}
}

func TestHub_Publish(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	h.Publish(registry.Event{
		Topic:     registry.TopicTrustUpdated,
		AgentDID:  "did:mesh:0123456789abcdef0123456789abcdef",
		Payload:   map[string]int{"trust_score": 803},
		Timestamp: time.Now(),
	})

	msgs, ok := h.backlog.Since(0)
	if !ok || len(msgs) != 1 {
		t.Fatalf("Expected 1 message in backlog, got %d", len(msgs))
	}
	if msgs[0].Topic != registry.TopicTrustUpdated || msgs[0].EventID != 1 {
		t.Errorf("unexpected message %+v", msgs[0])
	}
}
