package manager

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/aidarkhanov/nanoid"
)

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func newGenerationID() string {
	id, err := nanoid.Generate(idAlphabet, 12)
	if err != nil {
		return "gen-unknown"
	}
	return id
}

// ChunkStream is the consumer side of one streaming generation. Chunks are
// returned in production order. An aborted stream ends with AbortSentinel and
// a faulted one with an inline ErrorMarker. ChunkStream is not safe for use by
// more than one goroutine.
type ChunkStream struct {
	m       *Manager
	id      string
	req     GenerationRequest
	size    string
	w       *worker
	active  *activeGeneration
	cancel  context.CancelFunc
	release func()

	start    time.Time
	first    time.Time
	hasFirst bool
	text     strings.Builder

	done    bool
	once    sync.Once
	metrics GenerationMetrics
}

// Stream starts a generation and returns its chunk stream. The abort signal
// is cleared only after the admission gate is held, so a cancel aimed at the
// previous generation can never leak into this one. Errors are returned only
// before generation starts: model unavailable, busy, or unreadable image.
func (m *Manager) Stream(ctx context.Context, req GenerationRequest) (*ChunkStream, error) {
	release, err := m.beginGeneration(ctx)
	if err != nil {
		return nil, err
	}
	adapter := m.currentAdapter()
	if adapter == nil {
		release()
		return nil, ErrModelUnavailable
	}
	m.abort.Clear()
	start := time.Now()
	size := probeDimensions(req.ImagePath)

	in, err := BuildModelInput(req.ImagePath, req.Mode)
	if err != nil {
		release()
		return nil, err
	}

	gctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &ChunkStream{
		m:       m,
		id:      newGenerationID(),
		req:     req,
		size:    size,
		cancel:  cancel,
		release: release,
		start:   start,
	}
	m.generations.Add(1)
	m.publish("generation_start", map[string]any{"id": s.id, "mode": string(req.Mode), "stream": true})
	logger().Info().Str("id", s.id).Str("mode", string(req.Mode)).Str("image", req.ImagePath).Str("size", size).Msg("generation start")
	s.w = startWorker(gctx, adapter, in, m.maxFragments, &m.abort)
	s.active = &activeGeneration{bridge: s.w.bridge, cancel: cancel}
	m.setActive(s.active)
	return s, nil
}

// ID returns the generation id used in logs and the metrics record.
func (s *ChunkStream) ID() string { return s.id }

// Next returns the next chunk. ok is false once the stream has ended; the
// terminal sentinel or error marker, if any, is returned with ok=true first.
// If ctx ends while waiting, the generation is stopped and recorded as aborted.
func (s *ChunkStream) Next(ctx context.Context) (chunk string, ok bool) {
	if s.done {
		return "", false
	}
	ev, ok := s.w.bridge.Next(ctx)
	if !ok {
		s.finish(OutcomeAborted)
		return "", false
	}
	if ev.Kind == EventFragment && !s.hasFirst {
		s.first = time.Now()
		s.hasFirst = true
	}
	if s.m.abort.IsSet() {
		s.finish(OutcomeAborted)
		return AbortSentinel, true
	}
	switch ev.Kind {
	case EventFragment:
		s.text.WriteString(ev.Text)
		return ev.Text, true
	case EventAborted:
		s.finish(OutcomeAborted)
		return AbortSentinel, true
	case EventErrored:
		logger().Error().Err(ev.Err).Str("id", s.id).Msg("generation failed")
		s.finish(OutcomeErrored)
		return ErrorMarker(ev.Err), true
	default:
		s.finish(OutcomeCompleted)
		return "", false
	}
}

// Close stops the generation if it is still running. Safe to call more than once.
func (s *ChunkStream) Close() {
	if !s.done {
		s.finish(OutcomeAborted)
	}
}

// Metrics returns the finalized metrics; valid once the stream has ended.
func (s *ChunkStream) Metrics() GenerationMetrics { return s.metrics }

// Text returns the concatenation of all delivered fragments.
func (s *ChunkStream) Text() string { return s.text.String() }

func (s *ChunkStream) finish(outcome Outcome) {
	s.once.Do(func() {
		s.done = true
		end := time.Now()
		// Stop a worker that may still be producing; it owns the model until it returns.
		s.cancel()
		m := s.m
		tokens := 0
		if s.hasFirst {
			tokens = m.recorder.Count(context.Background(), s.text.String())
		}
		met := ComputeMetrics(s.start, s.first, end, s.hasFirst, tokens)
		met.ID = s.id
		met.ImageSize = s.size
		met.Mode = s.req.Mode
		met.Outcome = outcome
		s.metrics = met
		m.recorder.Record(met)

		switch outcome {
		case OutcomeAborted:
			m.aborts.Add(1)
		case OutcomeErrored:
			m.failures.Add(1)
		}
		m.mu.Lock()
		m.last = &met
		m.mu.Unlock()
		m.publish("generation_end", map[string]any{"id": s.id, "outcome": string(outcome)})
		logger().Info().Str("id", s.id).Str("outcome", string(outcome)).Dur("dur", met.Total).Int("tokens", met.Tokens).Msg("generation end")

		w, release, g := s.w, s.release, s.active
		go func() {
			w.wait()
			m.clearActive(g)
			release()
		}()
	})
}
