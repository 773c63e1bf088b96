package events

import (
	"sync"

	"lotterychain/core/types"
)

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Typed is implemented by events that can render their canonical payload.
type Typed interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Recorder buffers the payloads of every typed event it receives. The node
// installs one per transaction and discards it when the transaction reverts.
type Recorder struct {
	mu     sync.Mutex
	events []*types.Event
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(evt Event) {
	typed, ok := evt.(Typed)
	if !ok {
		return
	}
	payload := typed.Event()
	if payload == nil {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, payload.Clone())
	r.mu.Unlock()
}

// Drain returns the buffered events and resets the recorder.
func (r *Recorder) Drain() []*types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

// Reset drops buffered events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// Feed fans committed events out to subscribers. Slow subscribers miss
// events instead of blocking the ledger.
type Feed struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan *types.Event
}

// NewFeed returns an empty feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[int]chan *types.Event)}
}

// Subscribe registers a subscriber with the given channel capacity. The
// returned cancel function closes the channel.
func (f *Feed) Subscribe(buffer int) (<-chan *types.Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan *types.Event, buffer)
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = ch
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers events to every subscriber without blocking.
func (f *Feed) Publish(evts ...*types.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, evt := range evts {
		for _, ch := range f.subs {
			select {
			case ch <- evt.Clone():
			default:
			}
		}
	}
}

// Subscribers reports the number of active subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
