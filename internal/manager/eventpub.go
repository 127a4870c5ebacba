package manager

import (
	"sync"

	"github.com/rs/zerolog"
)

// LogPublisher writes each event as a debug line on a zerolog logger.
type LogPublisher struct {
	l zerolog.Logger
}

func NewLogPublisher(l zerolog.Logger) *LogPublisher { return &LogPublisher{l: l} }

func (p *LogPublisher) Publish(e Event) {
	ev := p.l.Debug().Str("event", e.Name).Str("backend", e.Backend)
	if len(e.Fields) > 0 {
		ev = ev.Fields(e.Fields)
	}
	ev.Msg("manager event")
}

// MemoryPublisher keeps the most recent events in memory. A limit of zero
// keeps everything.
type MemoryPublisher struct {
	mu     sync.Mutex
	limit  int
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

// NewBoundedMemoryPublisher keeps at most limit events.
func NewBoundedMemoryPublisher(limit int) *MemoryPublisher {
	return &MemoryPublisher{limit: limit}
}

func (p *MemoryPublisher) Publish(e Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	if p.limit > 0 && len(p.events) > p.limit {
		p.events = append(p.events[:0], p.events[len(p.events)-p.limit:]...)
	}
	p.mu.Unlock()
}

// Events returns a copy, oldest first.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}
