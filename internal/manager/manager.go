package manager

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Manager owns one model worker: the recognition adapter, its abort signal
// and the admission gate that keeps generations single-flight.
type Manager struct {
	mu        sync.RWMutex
	state     State
	err       string
	adapter   InferenceAdapter
	recorder  *MetricsRecorder
	pub       EventPublisher
	startTime time.Time
	last      *GenerationMetrics

	// abort is shared by whichever generation holds genCh.
	abort AbortSignal
	// active is the generation holding genCh, nil between generations.
	active *activeGeneration

	// Admission primitives
	genCh   chan struct{} // size 1: single in-flight generation
	queueCh chan struct{} // buffered: queue slots

	// Queue and generation config
	maxQueueDepth int
	maxWait       time.Duration
	maxFragments  int

	generations atomic.Uint64
	aborts      atomic.Uint64
	failures    atomic.Uint64
}

// zlog is the package logger. If unset, logging is disabled.
var zlog = zerolog.Nop()

// SetLogger installs a structured logger used by the manager.
func SetLogger(l zerolog.Logger) { zlog = l }

func logger() *zerolog.Logger { return &zlog }

// New constructs a Manager around adapter with default tunables.
func New(adapter InferenceAdapter) *Manager {
	return NewWithConfig(ManagerConfig{Adapter: adapter})
}

// Ready reports whether generation requests can be admitted.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateReady && m.adapter != nil
}

// Backend returns the adapter name, or "" when no model is loaded.
func (m *Manager) Backend() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.adapter == nil {
		return ""
	}
	return m.adapter.Name()
}

func (m *Manager) currentAdapter() InferenceAdapter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.adapter
}

// Close releases the adapter and the metrics log.
func (m *Manager) Close() error {
	m.mu.Lock()
	adapter := m.adapter
	m.adapter = nil
	m.state = StateError
	m.err = "closed"
	m.mu.Unlock()
	var first error
	if adapter != nil {
		first = adapter.Close()
	}
	if m.recorder != nil {
		if err := m.recorder.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m *Manager) publish(name string, fields map[string]any) {
	m.mu.RLock()
	pub := m.pub
	backend := ""
	if m.adapter != nil {
		backend = m.adapter.Name()
	}
	m.mu.RUnlock()
	pub.Publish(Event{Name: name, Backend: backend, Fields: fields})
}
