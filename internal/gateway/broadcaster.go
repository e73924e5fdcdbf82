package gateway

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
)

// subscriberBuffer is the per-client frame backlog; a client that falls
// further behind starts losing frames.
const subscriberBuffer = 32

// Broadcaster fans SSE frames out to the active GET /events clients.
// Delivery is best-effort: sends never block, a saturated client is
// skipped and the drop is counted against its id.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan []byte
	drops  map[int]int
}

func newBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs:  make(map[int]chan []byte),
		drops: make(map[int]int),
	}
}

// subscribe registers a new client and returns its id plus the channel
// its frames arrive on. The caller must unsubscribe with the same id
// when the connection closes.
func (b *Broadcaster) subscribe() (int, <-chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	ch := make(chan []byte, subscriberBuffer)
	b.subs[id] = ch
	return id, ch
}

func (b *Broadcaster) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if dropped := b.drops[id]; dropped > 0 {
		slog.Debug("gateway: subscriber closed with dropped frames", "subscriber", id, "dropped", dropped)
	}
	delete(b.subs, id)
	delete(b.drops, id)
}

// send encodes evt once and offers the frame to every subscriber.
func (b *Broadcaster) send(evt SSEEvent) {
	frame, err := encodeFrame(evt)
	if err != nil {
		slog.Warn("gateway: failed to encode SSE event", "type", evt.Type, "error", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- frame:
		default:
			b.drops[id]++
		}
	}
}

// encodeFrame renders evt as one SSE data frame.
func encodeFrame(evt SSEEvent) ([]byte, error) {
	raw, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Grow(len(raw) + 8)
	buf.WriteString("data: ")
	buf.Write(raw)
	buf.WriteString("\n\n")
	return buf.Bytes(), nil
}
