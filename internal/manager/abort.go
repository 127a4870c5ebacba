package manager

import "sync/atomic"

// AbortSignal is the cancellation flag shared by the model worker and the
// generation currently holding the admission gate. It is cleared only when a
// new generation starts.
type AbortSignal struct {
	v atomic.Bool
}

// Clear resets the signal to not-aborted.
func (a *AbortSignal) Clear() { a.v.Store(false) }

// Set marks the signal aborted. Calling it repeatedly is harmless.
func (a *AbortSignal) Set() { a.v.Store(true) }

// IsSet reports whether the signal is currently set.
func (a *AbortSignal) IsSet() bool { return a.v.Load() }
