package manager

import "context"

// CancelStatus is the outcome of a cancel request.
type CancelStatus string

const (
	CancelSignalled CancelStatus = "cancelled"
	CancelNoActive  CancelStatus = "no active generation"
	CancelNoModel   CancelStatus = "no model"
)

// activeGeneration lets Cancel reach a generation whose backend has not
// produced anything yet, for example while the model is still reading the image.
type activeGeneration struct {
	bridge *Bridge
	cancel context.CancelFunc
}

func (g *activeGeneration) interrupt() {
	g.bridge.Finish(EventAborted, nil)
	g.cancel()
}

// setActive registers g. A cancel that arrived after the gate was taken but
// before registration is applied here.
func (m *Manager) setActive(g *activeGeneration) {
	m.mu.Lock()
	m.active = g
	m.mu.Unlock()
	if m.abort.IsSet() {
		g.interrupt()
	}
}

// clearActive forgets g unless a newer generation has replaced it.
func (m *Manager) clearActive(g *activeGeneration) {
	m.mu.Lock()
	if m.active == g {
		m.active = nil
	}
	m.mu.Unlock()
}

// Cancel sets the shared abort signal when a generation holds the admission
// gate, then terminates its bridge as ABORTED and stops its backend call so a
// consumer waiting for the first fragment wakes at once. With nothing in
// flight it is a no-op.
func (m *Manager) Cancel() CancelStatus {
	if !m.Ready() {
		return CancelNoModel
	}
	if !m.inflight() {
		return CancelNoActive
	}
	m.abort.Set()
	m.mu.RLock()
	g := m.active
	m.mu.RUnlock()
	if g != nil {
		g.interrupt()
	}
	m.publish("cancel_requested", nil)
	logger().Info().Msg("cancel requested")
	return CancelSignalled
}
