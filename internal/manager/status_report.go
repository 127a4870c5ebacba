package manager

import (
	"time"

	"ocrd/pkg/types"
)

// Snapshot returns a read-only view of the manager state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Snapshot{State: m.state, Err: m.err, Started: m.startTime}
	if m.adapter != nil {
		s.Backend = m.adapter.Name()
	}
	return s
}

// LastMetrics returns the most recent finalized streaming metrics, if any.
func (m *Manager) LastMetrics() (GenerationMetrics, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return GenerationMetrics{}, false
	}
	return *m.last, true
}

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	snap := m.Snapshot()
	now := time.Now()
	resp := types.StatusResponse{
		State:            string(snap.State),
		Backend:          snap.Backend,
		Error:            snap.Err,
		Inflight:         len(m.genCh),
		QueueLen:         len(m.queueCh),
		MaxQueueDepth:    cap(m.queueCh),
		AbortPending:     m.abort.IsSet(),
		GenerationsTotal: m.generations.Load(),
		AbortsTotal:      m.aborts.Load(),
		ErrorsTotal:      m.failures.Load(),
		UptimeSeconds:    int64(now.Sub(snap.Started).Seconds()),
		ServerTimeUnix:   now.Unix(),
	}
	if last, ok := m.LastMetrics(); ok {
		resp.LastGeneration = metricsSnapshot(last)
	}
	return resp
}

func metricsSnapshot(g GenerationMetrics) *types.MetricsSnapshot {
	s := &types.MetricsSnapshot{
		ID:           g.ID,
		Outcome:      string(g.Outcome),
		Mode:         string(g.Mode),
		ImageSize:    g.ImageSize,
		TotalSeconds: g.Total.Seconds(),
	}
	if g.HasFirst {
		ttft := g.TTFT.Seconds()
		tokens := g.Tokens
		tps := g.Throughput
		s.TTFTSeconds = &ttft
		s.Tokens = &tokens
		s.TokensPerSecond = &tps
	}
	return s
}
