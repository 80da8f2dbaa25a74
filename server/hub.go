package server

import (
	"encoding/json"
	"sync"
)

// Hub fans encoded records out to subscribers and keeps a bounded backlog
// of the current run for late subscribers.
type Hub struct {
	mu      sync.Mutex
	subs    map[chan []byte]struct{}
	backlog *Ring[[]byte]
	evicted int
}

// NewHub returns a Hub retaining up to backlog records.
func NewHub(backlog int) *Hub {
	return &Hub{
		subs:    make(map[chan []byte]struct{}),
		backlog: NewRing[[]byte](backlog),
	}
}

// Subscribe registers a subscriber with the given channel buffer. It
// returns the live channel, the backlog recorded so far and a cancel func
// that unregisters and closes the channel.
//
// The channel is closed early when the subscriber falls a full buffer
// behind. Every record it received before that is in order with no gaps;
// resubscribing replays the backlog.
func (h *Hub) Subscribe(buffer int) (<-chan []byte, [][]byte, func()) {
	ch := make(chan []byte, max(1, buffer))
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	replay := h.backlog.Slice()
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.remove(ch)
	}
	return ch, replay, cancel
}

// remove unregisters and closes ch once. h.mu must be held.
func (h *Hub) remove(ch chan []byte) bool {
	if _, ok := h.subs[ch]; !ok {
		return false
	}
	delete(h.subs, ch)
	close(ch)
	return true
}

// Broadcast records msg and delivers it to every subscriber. A subscriber
// whose buffer is full is evicted instead of missing the message.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.backlog.Push(msg)
	for ch := range h.subs {
		select {
		case ch <- msg:
		default:
			if h.remove(ch) {
				h.evicted++
			}
		}
	}
}

// BroadcastJSON encodes v and broadcasts it.
func (h *Hub) BroadcastJSON(v any) error {
	msg, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(msg)
	return nil
}

// Reset clears the backlog at the start of a run.
func (h *Hub) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.backlog.Reset()
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Evicted returns how many subscribers were closed for falling behind.
func (h *Hub) Evicted() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.evicted
}
