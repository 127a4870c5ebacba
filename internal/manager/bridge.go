package manager

import (
	"context"
	"sync"
)

// EventKind classifies a bridge event.
type EventKind int

const (
	EventFragment EventKind = iota
	EventCompleted
	EventAborted
	EventErrored
)

func (k EventKind) String() string {
	switch k {
	case EventFragment:
		return "fragment"
	case EventCompleted:
		return "completed"
	case EventAborted:
		return "aborted"
	case EventErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// StreamEvent is one item handed across the bridge: a text fragment or a terminal marker.
type StreamEvent struct {
	Kind EventKind
	Text string
	Err  error
}

// Terminal reports whether the event ends the stream.
func (e StreamEvent) Terminal() bool { return e.Kind != EventFragment }

// Bridge is an unbounded single-producer/single-consumer queue between a
// generation worker and its consumer. The producer never blocks on the
// consumer. Exactly one terminal event is ever enqueued; after the consumer
// has read it, Next keeps returning that terminal event with ok=false.
type Bridge struct {
	mu       sync.Mutex
	queue    []StreamEvent
	closed   bool        // terminal event enqueued
	terminal StreamEvent // the terminal event, once enqueued
	drained  bool        // terminal event delivered to the consumer
	notify   chan struct{}
}

// NewBridge returns an OPEN bridge.
func NewBridge() *Bridge {
	return &Bridge{notify: make(chan struct{}, 1)}
}

// Push enqueues a fragment. It returns false once the bridge is closed.
func (b *Bridge) Push(text string) bool {
	return b.enqueue(StreamEvent{Kind: EventFragment, Text: text})
}

// Finish enqueues the terminal event. Only the first call has an effect.
// Besides the producer, Cancel may call it to end a stream early.
func (b *Bridge) Finish(kind EventKind, err error) bool {
	if kind == EventFragment {
		kind = EventCompleted
	}
	return b.enqueue(StreamEvent{Kind: kind, Err: err})
}

func (b *Bridge) enqueue(ev StreamEvent) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	b.queue = append(b.queue, ev)
	if ev.Terminal() {
		b.closed = true
		b.terminal = ev
	}
	b.mu.Unlock()
	select {
	case b.notify <- struct{}{}:
	default:
	}
	return true
}

// Next blocks until an event is available or ctx is done. ok is false when
// the stream had already terminated before this call, or when ctx ended.
// The event returned together with ok=true may itself be terminal.
func (b *Bridge) Next(ctx context.Context) (StreamEvent, bool) {
	for {
		b.mu.Lock()
		if b.drained {
			ev := b.terminal
			b.mu.Unlock()
			return ev, false
		}
		if len(b.queue) > 0 {
			ev := b.queue[0]
			b.queue[0] = StreamEvent{}
			b.queue = b.queue[1:]
			if ev.Terminal() {
				b.drained = true
			}
			b.mu.Unlock()
			return ev, true
		}
		b.mu.Unlock()
		select {
		case <-b.notify:
		case <-ctx.Done():
			return StreamEvent{Kind: EventErrored, Err: ctx.Err()}, false
		}
	}
}
