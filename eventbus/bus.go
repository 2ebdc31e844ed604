package eventbus

import (
	"sync"

	"github.com/flowstack/orchestrator/core"
)

// subscription is one live (SSE) listener's bounded mailbox. A full
// mailbox drops the event rather than blocking the publisher; this is the
// producer side of §4.7's "if a live subscriber disconnects, the producer
// drops further live events for it (history remains intact)" rule applies
// equally to a slow-but-connected subscriber, since durable history is
// unaffected either way.
type subscription struct {
	ch     chan Event
	closed bool
}

// Bus publishes events for one execution: every Publish call is forwarded,
// non-blockingly, to at most one live subscriber. Bus keeps no durable
// record; durable step events are collected separately through Recorder,
// where the scheduler records only tool call and tool result events, so
// lifecycle events published here do not reach the step record. One Bus
// instance backs one execution.
type Bus struct {
	executionID string
	bufferSize  int

	mu   sync.Mutex
	subs map[string]*subscription // subscriber id -> mailbox, at most one live
}

// New constructs a Bus for one execution with the given live-subscriber
// buffer size (§5's bounded backpressure).
func New(executionID string, bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Bus{executionID: executionID, bufferSize: bufferSize, subs: make(map[string]*subscription)}
}

// Subscribe registers a live listener and returns a channel of events plus
// an unsubscribe func. Only the most recently subscribed listener is kept
// live ("one live subscriber per execution"), so a reconnect naturally
// supersedes a stale one rather than requiring the caller to explicitly
// evict it.
func (b *Bus) Subscribe(id string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscription{ch: make(chan Event, b.bufferSize)}
	b.subs = map[string]*subscription{id: sub}

	return sub.ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if cur, ok := b.subs[id]; ok && cur == sub && !cur.closed {
			cur.closed = true
			close(cur.ch)
			delete(b.subs, id)
		}
	}
}

// Publish delivers ev to the live subscriber (non-blocking, drop-on-full).
// It writes nothing durable: the scheduler records durable step events
// through a Recorder and checkpoint.Checkpointer.AppendStep instead.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subs {
		if sub.closed {
			continue
		}
		select {
		case sub.ch <- cloneEvent(ev):
		default:
			// Bounded backpressure: a full mailbox means a slow or gone
			// subscriber; drop rather than block the publishing node.
			_ = id
		}
	}
}

// Recorder accumulates events for the step currently being built, so the
// scheduler can hand the finished list to checkpoint.Checkpointer.AppendStep
// once the node completes. Kept separate from Bus because step recording
// must never drop events the way the live SSE path is allowed to.
type Recorder struct {
	mu     sync.Mutex
	events []core.StepEvent
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Record appends a durable StepEvent (e.g. a tool invocation record).
func (r *Recorder) Record(ev core.StepEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Drain returns and clears the accumulated events, for attaching to the
// Step about to be appended.
func (r *Recorder) Drain() []core.StepEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}
