package manager

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestProcessOnce_ReturnsFullText(t *testing.T) {
	fa := &fakeAdapter{tokens: []string{"| a | b |", "\n", "| 1 | 2 |"}}
	m, log := newTestManager(t, fa, ManagerConfig{})
	img := writePNG(t, t.TempDir(), "a.png", 8, 8)

	out, err := m.ProcessOnce(testCtx(t), GenerationRequest{ImagePath: img, Mode: ModeTable})
	if err != nil {
		t.Fatalf("ProcessOnce: %v", err)
	}
	if out != "| a | b |\n| 1 | 2 |" {
		t.Fatalf("unexpected text %q", out)
	}
	if log.String() != "" {
		t.Fatalf("blocking path must not write a metrics record: %s", log.String())
	}
	if m.inflight() {
		t.Fatalf("gate still held after ProcessOnce returned")
	}
}

func TestProcessOnce_AbortReturnsSentinel(t *testing.T) {
	fa := &fakeAdapter{tokens: []string{"a", "b"}, gate: make(chan struct{}), started: make(chan struct{}, 1)}
	m, _ := newTestManager(t, fa, ManagerConfig{})
	img := writePNG(t, t.TempDir(), "a.png", 8, 8)

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := m.ProcessOnce(context.Background(), GenerationRequest{ImagePath: img, Mode: ModeText})
		done <- result{out, err}
	}()
	<-fa.started
	if st := m.Cancel(); st != CancelSignalled {
		t.Fatalf("Cancel = %q", st)
	}
	close(fa.gate)
	r := <-done
	if r.err != nil || r.out != AbortSentinel {
		t.Fatalf("expected sentinel, got %q, %v", r.out, r.err)
	}
}

func TestProcessOnce_FaultIsInferenceError(t *testing.T) {
	boom := errors.New("cuda oom")
	fa := &fakeAdapter{tokens: []string{"x"}, genErr: boom}
	m, _ := newTestManager(t, fa, ManagerConfig{})
	img := writePNG(t, t.TempDir(), "a.png", 8, 8)

	_, err := m.ProcessOnce(testCtx(t), GenerationRequest{ImagePath: img, Mode: ModeText})
	if !IsInferenceError(err) || !errors.Is(err, boom) {
		t.Fatalf("expected inference error wrapping cause, got %v", err)
	}
	if got := m.Status().ErrorsTotal; got != 1 {
		t.Fatalf("errors total = %d", got)
	}
}

func TestProcessOnce_InputErrorReleasesGate(t *testing.T) {
	fa := &fakeAdapter{tokens: []string{"ok"}}
	m, _ := newTestManager(t, fa, ManagerConfig{})

	_, err := m.ProcessOnce(testCtx(t), GenerationRequest{ImagePath: "", Mode: ModeText})
	if !IsInputError(err) {
		t.Fatalf("expected input error, got %v", err)
	}
	img := writePNG(t, t.TempDir(), "a.png", 8, 8)
	out, err := m.ProcessOnce(testCtx(t), GenerationRequest{ImagePath: img, Mode: ModeText})
	if err != nil || out != "ok" {
		t.Fatalf("second call: %q, %v", out, err)
	}
}

func TestProcessOnce_ModelUnavailable(t *testing.T) {
	m := NewWithConfig(ManagerConfig{})
	if _, err := m.ProcessOnce(testCtx(t), GenerationRequest{ImagePath: "a.png"}); !IsDependencyUnavailable(err) {
		t.Fatalf("expected dependency unavailable, got %v", err)
	}
}

func TestProcessOnce_CanceledContext(t *testing.T) {
	fa := &fakeAdapter{tokens: []string{"a"}}
	m, _ := newTestManager(t, fa, ManagerConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.ProcessOnce(ctx, GenerationRequest{ImagePath: "a.png"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestProcessOnce_CancelBeforeFirstFragment(t *testing.T) {
	fa := &fakeAdapter{tokens: []string{"late"}, gate: make(chan struct{}), started: make(chan struct{}, 1)}
	m, _ := newTestManager(t, fa, ManagerConfig{})
	img := writePNG(t, t.TempDir(), "a.png", 4, 4)

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := m.ProcessOnce(context.Background(), GenerationRequest{ImagePath: img, Mode: ModeText})
		done <- result{out, err}
	}()
	<-fa.started
	if st := m.Cancel(); st != CancelSignalled {
		t.Fatalf("Cancel = %q", st)
	}
	select {
	case r := <-done:
		if r.err != nil || r.out != AbortSentinel {
			t.Fatalf("got %q, %v", r.out, r.err)
		}
	case <-time.After(300 * time.Millisecond):
		t.Fatalf("ProcessOnce did not return after cancel")
	}
	waitIdle(t, m)
}
