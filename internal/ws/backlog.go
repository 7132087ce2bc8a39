package ws

import "sync"

// Message is what subscribers receive for every published event.
type Message struct {
	EventID   int64       `json:"eventId"`
	Topic     string      `json:"topic"`
	AgentDID  string      `json:"agent_did"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

// backlog keeps the most recent messages so clients can resume from the last
// event id they saw.
type backlog struct {
	mu     sync.Mutex
	size   int
	nextID int64
	items  []Message
}

func newBacklog(size int) *backlog {
	return &backlog{size: size}
}

// Add assigns the next event id and stores m.
func (b *backlog) Add(m Message) Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	m.EventID = b.nextID
	b.items = append(b.items, m)
	if len(b.items) > b.size {
		b.items = append([]Message(nil), b.items[len(b.items)-b.size:]...)
	}
	return m
}

// Latest is the id of the newest message, 0 if none.
func (b *backlog) Latest() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nextID
}

// Since returns messages with id > lastID. ok is false when some of them have
// already been evicted and the client must resync.
func (b *backlog) Since(lastID int64) (msgs []Message, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if lastID >= b.nextID {
		return nil, true
	}
	if len(b.items) == 0 || b.items[0].EventID > lastID+1 {
		return nil, false
	}
	for _, m := range b.items {
		if m.EventID > lastID {
			msgs = append(msgs, m)
		}
	}
	return msgs, true
}
