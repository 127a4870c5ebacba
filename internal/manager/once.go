package manager

import (
	"context"
	"strings"
	"time"
)

// ProcessOnce runs a generation to completion and returns the full text, or
// AbortSentinel if the abort signal was observed. A fault inside the
// generation loop is returned as *InferenceError. No metrics record is written.
func (m *Manager) ProcessOnce(ctx context.Context, req GenerationRequest) (string, error) {
	release, err := m.beginGeneration(ctx)
	if err != nil {
		return "", err
	}
	adapter := m.currentAdapter()
	if adapter == nil {
		release()
		return "", ErrModelUnavailable
	}
	m.abort.Clear()
	in, err := BuildModelInput(req.ImagePath, req.Mode)
	if err != nil {
		release()
		return "", err
	}

	id := newGenerationID()
	m.generations.Add(1)
	m.publish("generation_start", map[string]any{"id": id, "mode": string(req.Mode), "stream": false})
	start := time.Now()
	gctx, cancel := context.WithCancel(ctx)
	w := startWorker(gctx, adapter, in, m.maxFragments, &m.abort)
	g := &activeGeneration{bridge: w.bridge, cancel: cancel}
	m.setActive(g)
	defer func() {
		cancel()
		w.wait()
		m.clearActive(g)
		release()
	}()

	var b strings.Builder
	outcome := OutcomeCompleted
	defer func() {
		m.publish("generation_end", map[string]any{"id": id, "outcome": string(outcome)})
		logger().Info().Str("id", id).Str("outcome", string(outcome)).Dur("dur", time.Since(start)).Msg("generation end")
	}()
	for {
		ev, ok := w.bridge.Next(ctx)
		if !ok {
			outcome = OutcomeAborted
			m.aborts.Add(1)
			return "", ctx.Err()
		}
		if m.abort.IsSet() || ev.Kind == EventAborted {
			outcome = OutcomeAborted
			m.aborts.Add(1)
			return AbortSentinel, nil
		}
		switch ev.Kind {
		case EventFragment:
			b.WriteString(ev.Text)
		case EventErrored:
			outcome = OutcomeErrored
			m.failures.Add(1)
			return "", &InferenceError{Backend: m.Backend(), Err: ev.Err}
		default:
			return b.String(), nil
		}
	}
}
