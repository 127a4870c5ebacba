package manager

import (
	"context"
	"errors"
	"fmt"
)

// worker is one in-flight generation pass.
type worker struct {
	bridge *Bridge
	done   chan struct{}
}

// startWorker runs adapter.Generate on its own goroutine and feeds the bridge.
// The abort signal is polled per fragment both through the stopping predicate
// handed to the adapter and before each push. Errors and panics inside the
// adapter terminate the bridge as ERRORED.
func startWorker(ctx context.Context, adapter InferenceAdapter, in ModelInput, maxFragments int, abort *AbortSignal) *worker {
	w := &worker{bridge: NewBridge(), done: make(chan struct{})}
	go func() {
		defer close(w.done)
		defer func() {
			if r := recover(); r != nil {
				w.bridge.Finish(EventErrored, fmt.Errorf("generation panic: %v", r))
			}
		}()
		produced := 0
		params := InferParams{
			MaxTokens: maxFragments,
			ShouldStop: func() bool {
				return abort.IsSet() || ctx.Err() != nil || (maxFragments > 0 && produced >= maxFragments)
			},
		}
		_, err := adapter.Generate(ctx, in, params, func(tok string) error {
			if abort.IsSet() {
				return errStopped
			}
			if maxFragments > 0 && produced >= maxFragments {
				return errFragmentLimit
			}
			if !w.bridge.Push(tok) {
				return errStopped
			}
			produced++
			return nil
		})
		switch {
		case abort.IsSet():
			w.bridge.Finish(EventAborted, nil)
		case ctx.Err() != nil:
			w.bridge.Finish(EventErrored, ctx.Err())
		case err == nil, errors.Is(err, errStopped), errors.Is(err, errFragmentLimit):
			w.bridge.Finish(EventCompleted, nil)
		default:
			w.bridge.Finish(EventErrored, err)
		}
	}()
	return w
}

// wait blocks until the adapter call returned.
func (w *worker) wait() { <-w.done }
