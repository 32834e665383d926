// Package notify provides the in-process event plumbing: a topic Hub for
// internal subscriptions and a RingChannel for the outward event stream.
package notify

import "sync"

// Topic names one internal event stream.
type Topic string

const (
	// TopicReady fires once the radio controller reports readiness.
	TopicReady Topic = "ready"
	// TopicDiscovered fires for each advertising peripheral seen by a scan.
	TopicDiscovered Topic = "discovered"
	// TopicDevStatus carries raw device-status indications.
	TopicDevStatus Topic = "devStatus"
	// TopicDevSettled is the internal signal that a restored peripheral has
	// finished settling.
	TopicDevSettled Topic = "devSettled"
	// TopicConnectErr carries controller-level connect failures.
	TopicConnectErr Topic = "connectErr"
	// TopicPermitJoin carries join-window countdown changes.
	TopicPermitJoin Topic = "permitJoin"
	// TopicError carries asynchronous failures with no other outlet.
	TopicError Topic = "error"
)

// Token identifies one subscription for removal.
type Token struct {
	topic Topic
	id    uint64
}

// Hub is a minimal topic-based emitter. Handlers run synchronously on the
// emitting goroutine, preserving per-source ordering.
type Hub struct {
	mu   sync.Mutex
	next uint64
	subs map[Topic]map[uint64]func(any)
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[Topic]map[uint64]func(any))}
}

// On registers fn for topic and returns a removal token.
func (h *Hub) On(topic Topic, fn func(any)) Token {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	m, ok := h.subs[topic]
	if !ok {
		m = make(map[uint64]func(any))
		h.subs[topic] = m
	}
	m[h.next] = fn
	return Token{topic: topic, id: h.next}
}

// Off removes all given subscriptions under a single lock acquisition, so a
// multi-source listener set is always detached as one unit.
func (h *Hub) Off(tokens ...Token) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range tokens {
		if m, ok := h.subs[t.topic]; ok {
			delete(m, t.id)
			if len(m) == 0 {
				delete(h.subs, t.topic)
			}
		}
	}
}

// Emit invokes every handler registered for topic with v.
func (h *Hub) Emit(topic Topic, v any) {
	h.mu.Lock()
	m := h.subs[topic]
	fns := make([]func(any), 0, len(m))
	for _, fn := range m {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// SubscriberCount reports the number of live subscriptions for topic.
func (h *Hub) SubscriberCount(topic Topic) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[topic])
}
