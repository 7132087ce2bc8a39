// Package audit keeps a per-agent, append-only, hash-chained event log.
//
// Each entry's hash is SHA-256 over the previous tip and a key-sorted JSON
// rendering of the entry's content, so rewriting any stored entry makes the
// recomputed chain diverge from the stored tip.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"agentmesh/internal/keylock"
	"agentmesh/internal/store"
)

// GenesisHash seeds every chain.
var GenesisHash = strings.Repeat("0", 64)

// Entry is one immutable audit record.
type Entry struct {
	ID           string         `json:"id"`
	AgentDID     string         `json:"agent_did"`
	EventType    string         `json:"event_type"`
	Outcome      string         `json:"outcome"`
	Timestamp    time.Time      `json:"timestamp"`
	Data         map[string]any `json:"data,omitempty"`
	PreviousHash string         `json:"previous_hash"`
	Hash         string         `json:"hash"`
}

// Window is the tail of an agent's chain.
type Window struct {
	Entries  []Entry
	Total    int
	Tip      string // empty when the chain has no entries
	Complete bool   // Entries is the whole history
}

func entryKey(did, id string) string { return "audit:" + did + ":" + id }
func headKey(did string) string { return "audit-index:" + did }

// head is the committed state of one chain. The ids and the tip live under a
// single key so one Set commits both and one Get reads a consistent pair.
type head struct {
	IDs []string `json:"ids"`
	Tip string   `json:"tip"`
}

// canonical renders the hashed fields as key-sorted JSON.
func canonical(e *Entry) ([]byte, error) {
	var data map[string]any
	if len(e.Data) > 0 {
		data = e.Data
	}
	return json.Marshal(map[string]any{
		"id":         e.ID,
		"agent_did":  e.AgentDID,
		"event_type": e.EventType,
		"outcome":    e.Outcome,
		"timestamp":  e.Timestamp.UTC().Format(time.RFC3339Nano),
		"data":       data,
	})
}

// ComputeHash returns SHA256(prev + ":" + canonical(e)) in hex.
func ComputeHash(prev string, e *Entry) (string, error) {
	c, err := canonical(e)
	if err != nil {
		return "", fmt.Errorf("canonicalize audit entry: %w", err)
	}
	sum := sha256.Sum256(append([]byte(prev+":"), c...))
	return hex.EncodeToString(sum[:]), nil
}

// Log appends and reads chains stored in a store.Store.
type Log struct {
	store store.Store
	locks *keylock.Map
	now   func() time.Time
}

// New creates a log over s.
func New(s store.Store) *Log {
	return &Log{store: s, locks: keylock.New(), now: time.Now}
}

// Locks is the per-DID lock map Append serializes on. Callers that already
// hold a DID's lock from this map use AppendLocked.
func (l *Log) Locks() *keylock.Map {
	return l.locks
}

func (l *Log) readHead(ctx context.Context, did string) (head, error) {
	var h head
	err := store.GetJSON(ctx, l.store, headKey(did), &h)
	if errors.Is(err, store.ErrNotFound) {
		return head{}, nil
	}
	if err != nil {
		return head{}, fmt.Errorf("read audit index: %w", err)
	}
	return h, nil
}

// Tip returns the agent's chain tip, or "" if nothing was appended yet.
func (l *Log) Tip(ctx context.Context, did string) (string, error) {
	h, err := l.readHead(ctx, did)
	return h.Tip, err
}

// Append chains e onto the agent's log. ID and Timestamp are filled in when
// empty. Appends for the same agent are serialized.
func (l *Log) Append(ctx context.Context, e Entry) (*Entry, error) {
	if e.AgentDID == "" {
		return nil, errors.New("audit entry without agent_did")
	}
	unlock := l.locks.Lock(e.AgentDID)
	defer unlock()
	return l.AppendLocked(ctx, e)
}

// AppendLocked is Append for callers holding Locks().Lock(e.AgentDID).
//
// The entry is written before the head. A failed head write leaves an
// unreferenced entry behind and the chain exactly as it was.
func (l *Log) AppendLocked(ctx context.Context, e Entry) (*Entry, error) {
	if e.AgentDID == "" {
		return nil, errors.New("audit entry without agent_did")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now()
	}
	e.Timestamp = e.Timestamp.UTC()
	if len(e.Data) == 0 {
		e.Data = nil
	}

	h, err := l.readHead(ctx, e.AgentDID)
	if err != nil {
		return nil, err
	}
	prev := h.Tip
	if prev == "" {
		prev = GenesisHash
	}

	e.PreviousHash = prev
	if e.Hash, err = ComputeHash(prev, &e); err != nil {
		return nil, err
	}

	if err := store.SetJSON(ctx, l.store, entryKey(e.AgentDID, e.ID), &e, 0); err != nil {
		return nil, fmt.Errorf("write audit entry: %w", err)
	}
	next := head{IDs: append(h.IDs, e.ID), Tip: e.Hash}
	if err := store.SetJSON(ctx, l.store, headKey(e.AgentDID), next, 0); err != nil {
		return nil, fmt.Errorf("write audit index: %w", err)
	}
	return &e, nil
}

func (l *Log) load(ctx context.Context, did string, ids []string) ([]Entry, error) {
	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		var e Entry
		if err := store.GetJSON(ctx, l.store, entryKey(did, id), &e); err != nil {
			return nil, fmt.Errorf("read audit entry %s: %w", id, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Read returns the last limit entries in insertion order. limit <= 0 reads
// everything. The window and its tip come from one committed head, so the
// tip is always the hash of the last returned entry.
func (l *Log) Read(ctx context.Context, did string, limit int) (*Window, error) {
	h, err := l.readHead(ctx, did)
	if err != nil {
		return nil, err
	}

	ids := h.IDs
	total := len(ids)
	if limit > 0 && total > limit {
		ids = ids[total-limit:]
	}
	entries, err := l.load(ctx, did, ids)
	if err != nil {
		return nil, err
	}
	return &Window{
		Entries:  entries,
		Total:    total,
		Tip:      h.Tip,
		Complete: len(entries) == total,
	}, nil
}

// Verify recomputes the agent's whole chain from entry content and compares
// the result with the stored tip.
func (l *Log) Verify(ctx context.Context, did string) (bool, error) {
	h, err := l.readHead(ctx, did)
	if err != nil {
		return false, err
	}
	entries, err := l.load(ctx, did, h.IDs)
	if err != nil {
		return false, err
	}

	if len(entries) == 0 {
		return h.Tip == "", nil
	}
	prev := GenesisHash
	for i := range entries {
		if prev, err = ComputeHash(prev, &entries[i]); err != nil {
			return false, err
		}
	}
	return prev == h.Tip, nil
}

// VerifyWindow checks that each entry's hash matches its content and that
// consecutive entries link. It cannot vouch for history before the window.
func VerifyWindow(entries []Entry) bool {
	for i := range entries {
		h, err := ComputeHash(entries[i].PreviousHash, &entries[i])
		if err != nil || h != entries[i].Hash {
			return false
		}
		if i > 0 && entries[i].PreviousHash != entries[i-1].Hash {
			return false
		}
	}
	return true
}
