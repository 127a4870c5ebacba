package manager

import (
	"context"
	"time"
)

// beginGeneration reserves a queue slot and then the single in-flight slot.
// Returns a release func to be called once the generation worker has exited.
func (m *Manager) beginGeneration(ctx context.Context) (func(), error) {
	if !m.Ready() {
		return func() {}, ErrModelUnavailable
	}
	// Fast path: respect an already-canceled context
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}

	timer := time.NewTimer(m.maxWait)
	defer timer.Stop()
	select {
	case m.queueCh <- struct{}{}:
		// reserved queue slot
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		return func() {}, tooBusyError{reason: "queue full"}
	}

	// Wait to acquire the single in-flight slot
	acquired := false
	defer func() {
		if !acquired {
			<-m.queueCh
		}
	}()
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}
	select {
	case m.genCh <- struct{}{}:
		acquired = true
		return func() { <-m.genCh; <-m.queueCh }, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		return func() {}, tooBusyError{reason: "generation in progress"}
	}
}

// inflight reports whether a generation currently holds the gate.
func (m *Manager) inflight() bool { return len(m.genCh) > 0 }
