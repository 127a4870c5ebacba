package httpapi

import (
	"context"
	"errors"
)

// ErrServerShutdown is the cancellation cause of in-flight OCR work when the
// process is stopping.
var ErrServerShutdown = errors.New("server shutting down")

// serverBaseCtx is canceled when the process shuts down.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process context that in-flight OCR requests follow.
// Nil resets it to Background.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	serverBaseCtx = ctx
}

// withShutdown derives a context from the request context that is also
// canceled, with cause ErrServerShutdown, when the base context ends.
// The returned cancel func must be called when the handler returns.
func withShutdown(reqCtx context.Context) (context.Context, context.CancelFunc) {
	base := serverBaseCtx
	ctx, cancel := context.WithCancelCause(reqCtx)
	stop := context.AfterFunc(base, func() { cancel(ErrServerShutdown) })
	return ctx, func() {
		stop()
		cancel(context.Canceled)
	}
}

// shuttingDown reports whether the base context has ended.
func shuttingDown() bool { return serverBaseCtx.Err() != nil }
