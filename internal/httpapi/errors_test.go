package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"ocrd/internal/manager"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{manager.ErrModelUnavailable, http.StatusServiceUnavailable},
		{manager.ErrDependencyUnavailable("tesseract not built"), http.StatusServiceUnavailable},
		{&manager.InputError{Path: "p", Err: errors.New("x")}, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{context.Canceled, StatusClientClosedRequest},
		{mockHTTPError{msg: "teapot", code: http.StatusTeapot}, http.StatusTeapot},
		{&manager.InferenceError{Backend: "b", Err: errors.New("x")}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got, _ := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestWriteJSONError(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSONError(w, http.StatusBadRequest, "nope")
	if w.Code != http.StatusBadRequest || w.Body.String() != "{\"error\":\"nope\",\"code\":400}\n" {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}
}

type ctxKey struct{}

func TestWithShutdown(t *testing.T) {
	base, stopBase := context.WithCancel(context.Background())
	SetBaseContext(base)
	t.Cleanup(func() { SetBaseContext(nil) })

	req := context.WithValue(context.Background(), ctxKey{}, "rid")
	ctx, cancel := withShutdown(req)
	defer cancel()
	if ctx.Value(ctxKey{}) != "rid" {
		t.Fatalf("request values not carried")
	}
	if shuttingDown() {
		t.Fatalf("shuttingDown before cancel")
	}
	stopBase()
	<-ctx.Done()
	if !errors.Is(context.Cause(ctx), ErrServerShutdown) || !shuttingDown() {
		t.Fatalf("cause=%v", context.Cause(ctx))
	}
}

func TestWithShutdown_RequestEnds(t *testing.T) {
	req, stopReq := context.WithCancel(context.Background())
	ctx, cancel := withShutdown(req)
	defer cancel()
	stopReq()
	<-ctx.Done()
	if errors.Is(context.Cause(ctx), ErrServerShutdown) {
		t.Fatalf("request cancel reported as shutdown")
	}
}

func TestConfigSetters(t *testing.T) {
	SetMaxBodyBytes(-1)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("maxBodyBytes=%d", maxBodyBytes)
	}
	SetOCRTimeoutSeconds(-5)
	if ocrTimeout != 0 {
		t.Fatalf("ocrTimeout=%d", ocrTimeout)
	}
	SetOCRTimeoutSeconds(30)
	t.Cleanup(func() { SetOCRTimeoutSeconds(0) })
	if ocrTimeout != 30 {
		t.Fatalf("ocrTimeout=%d", ocrTimeout)
	}
	SetBaseContext(nil)
	if serverBaseCtx == nil {
		t.Fatalf("nil base context")
	}
}
