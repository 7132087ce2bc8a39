package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"agentmesh/internal/store"
)

const did = "did:mesh:0123456789abcdef0123456789abcdef"

func appendN(t *testing.T, l *Log, n int) []*Entry {
	t.Helper()
	out := make([]*Entry, 0, n)
	for i := 0; i < n; i++ {
		e, err := l.Append(context.Background(), Entry{
			AgentDID:  did,
			EventType: "handshake",
			Outcome:   "success",
			Data:      map[string]any{"seq": i, "caps": []string{"basic"}},
		})
		if err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
		out = append(out, e)
	}
	return out
}

func TestAppendChains(t *testing.T) {
	l := New(store.NewMemoryStore())
	entries := appendN(t, l, 5)

	if entries[0].PreviousHash != GenesisHash {
		t.Errorf("first entry should chain to genesis, got %s", entries[0].PreviousHash)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].PreviousHash != entries[i-1].Hash {
			t.Errorf("entry %d does not link to entry %d", i, i-1)
		}
	}
	for _, e := range entries {
		want, _ := ComputeHash(e.PreviousHash, e)
		if e.Hash != want {
			t.Errorf("entry %s hash mismatch", e.ID)
		}
		if e.ID == "" || e.Timestamp.IsZero() {
			t.Error("ID and Timestamp should be filled in")
		}
	}

	tip, _ := l.Tip(context.Background(), did)
	if tip != entries[4].Hash {
		t.Errorf("Expected tip %s, got %s", entries[4].Hash, tip)
	}

	ok, err := l.Verify(context.Background(), did)
	if err != nil || !ok {
		t.Errorf("Verify = %v, %v; want true", ok, err)
	}
}

func TestHashDependsOnPrevious(t *testing.T) {
	e := &Entry{ID: "x", AgentDID: did, EventType: "e", Outcome: "o"}
	h1, _ := ComputeHash(GenesisHash, e)
	h2, _ := ComputeHash("ff", e)
	if h1 == h2 {
		t.Error("hash should depend on the previous tip")
	}

	empty := &Entry{ID: "x", AgentDID: did, EventType: "e", Outcome: "o", Data: map[string]any{}}
	h3, _ := ComputeHash(GenesisHash, empty)
	if h1 != h3 {
		t.Error("nil and empty data should hash the same")
	}
}

func TestTamperDetected(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	l := New(s)
	entries := appendN(t, l, 4)

	// rewrite the second entry in place, keeping its stored hashes
	victim := *entries[1]
	victim.Outcome = "failed_signature"
	if err := store.SetJSON(ctx, s, entryKey(did, victim.ID), victim, 0); err != nil {
		t.Fatal(err)
	}

	ok, err := l.Verify(ctx, did)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Error("Verify should fail after tampering")
	}

	w, _ := l.Read(ctx, did, 0)
	if VerifyWindow(w.Entries) {
		t.Error("VerifyWindow should fail after tampering")
	}
}

func TestReadWindow(t *testing.T) {
	ctx := context.Background()
	l := New(store.NewMemoryStore())
	entries := appendN(t, l, 60)

	w, err := l.Read(ctx, did, 50)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if w.Total != 60 {
		t.Errorf("Expected total 60, got %d", w.Total)
	}
	if len(w.Entries) != 50 {
		t.Fatalf("Expected 50 entries, got %d", len(w.Entries))
	}
	if w.Complete {
		t.Error("window of 50 out of 60 is not complete")
	}
	if w.Entries[0].ID != entries[10].ID || w.Entries[49].ID != entries[59].ID {
		t.Error("window should hold the most recent entries in insertion order")
	}
	if w.Tip != entries[59].Hash {
		t.Error("tip should be the last entry's hash")
	}
	if !VerifyWindow(w.Entries) {
		t.Error("untampered window should verify")
	}

	all, _ := l.Read(ctx, did, 100)
	if !all.Complete || len(all.Entries) != 60 {
		t.Errorf("Expected complete window of 60, got %d complete=%v", len(all.Entries), all.Complete)
	}
}

func TestReadEmpty(t *testing.T) {
	ctx := context.Background()
	l := New(store.NewMemoryStore())

	w, err := l.Read(ctx, did, 50)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if w.Total != 0 || len(w.Entries) != 0 || w.Tip != "" || !w.Complete {
		t.Errorf("unexpected empty window %+v", w)
	}
	if ok, _ := l.Verify(ctx, did); !ok {
		t.Error("empty chain should verify")
	}
}

func TestConcurrentAppendsSerialize(t *testing.T) {
	ctx := context.Background()
	l := New(store.NewMemoryStore())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := l.Append(ctx, Entry{AgentDID: did, EventType: "event", Outcome: fmt.Sprint(i)}); err != nil {
				t.Errorf("Append: %v", err)
			}
		}(i)
	}
	wg.Wait()

	w, _ := l.Read(ctx, did, 0)
	if w.Total != 20 {
		t.Errorf("Expected 20 entries, got %d", w.Total)
	}
	if ok, _ := l.Verify(ctx, did); !ok {
		t.Error("chain should verify after concurrent appends")
	}
}

func TestAppendRequiresDID(t *testing.T) {
	l := New(store.NewMemoryStore())
	if _, err := l.Append(context.Background(), Entry{EventType: "x"}); err == nil {
		t.Error("Expected error for entry without agent_did")
	}
}

// flakyStore fails the next Set whose key has failPrefix, then behaves.
type flakyStore struct {
	store.Store
	mu         sync.Mutex
	failPrefix string
}

func (f *flakyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	fail := f.failPrefix != "" && strings.HasPrefix(key, f.failPrefix)
	if fail {
		f.failPrefix = ""
	}
	f.mu.Unlock()
	if fail {
		return errors.New("connection reset")
	}
	return f.Store.Set(ctx, key, value, ttl)
}

func TestFailedHeadWriteKeepsChainValid(t *testing.T) {
	ctx := context.Background()
	s := &flakyStore{Store: store.NewMemoryStore()}
	l := New(s)
	appendN(t, l, 1)

	s.mu.Lock()
	s.failPrefix = "audit-index:"
	s.mu.Unlock()
	if _, err := l.Append(ctx, Entry{AgentDID: did, EventType: "handshake", Outcome: "success"}); err == nil {
		t.Fatal("Expected error when the index write fails")
	}
	appendN(t, l, 1)

	w, err := l.Read(ctx, did, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if w.Total != 2 {
		t.Errorf("Expected 2 committed entries, got %d", w.Total)
	}
	if !VerifyWindow(w.Entries) {
		t.Error("window should link after a failed append")
	}
	if ok, err := l.Verify(ctx, did); err != nil || !ok {
		t.Errorf("Verify = %v, %v; want true", ok, err)
	}
}

// slowStore delays every read like a network round trip.
type slowStore struct {
	store.Store
	delay time.Duration
}

func (s *slowStore) Get(ctx context.Context, key string) ([]byte, error) {
	time.Sleep(s.delay)
	return s.Store.Get(ctx, key)
}

func TestReadAndVerifyDuringAppends(t *testing.T) {
	ctx := context.Background()
	l := New(&slowStore{Store: store.NewMemoryStore(), delay: time.Millisecond})
	appendN(t, l, 1)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for i := 0; i < 30; i++ {
			if _, err := l.Append(ctx, Entry{AgentDID: did, EventType: "event", Outcome: fmt.Sprint(i)}); err != nil {
				t.Errorf("Append: %v", err)
				return
			}
		}
	}()

	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
		}
		ok, err := l.Verify(ctx, did)
		if err != nil || !ok {
			t.Fatalf("Verify during appends = %v, %v; want true", ok, err)
		}
		w, err := l.Read(ctx, did, 5)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if last := w.Entries[len(w.Entries)-1]; w.Tip != last.Hash {
			t.Fatalf("Expected tip %s, got %s", last.Hash, w.Tip)
		}
	}
	wg.Wait()
}
