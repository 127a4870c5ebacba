package manager

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeAdapter is a lightweight in-memory adapter used for tests.
// When gate is set, each fragment waits for a value (or close) on gate.
type fakeAdapter struct {
	tokens   []string
	genErr   error
	panicMsg string
	gate     chan struct{}
	started  chan struct{}

	mu     sync.Mutex
	calls  int
	inputs []ModelInput
	closed bool
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) Generate(ctx context.Context, in ModelInput, params InferParams, onToken func(string) error) (FinalResult, error) {
	f.mu.Lock()
	f.calls++
	f.inputs = append(f.inputs, in)
	f.mu.Unlock()
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	var sb strings.Builder
	for _, tok := range f.tokens {
		if f.gate != nil {
			select {
			case <-f.gate:
			case <-ctx.Done():
				return FinalResult{Content: sb.String()}, ctx.Err()
			}
		}
		if params.stop() {
			return FinalResult{Content: sb.String()}, errStopped
		}
		if err := onToken(tok); err != nil {
			return FinalResult{Content: sb.String()}, err
		}
		sb.WriteString(tok)
	}
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.genErr != nil {
		return FinalResult{Content: sb.String()}, f.genErr
	}
	return FinalResult{Content: sb.String(), FinishReason: "stop"}, nil
}

func (f *fakeAdapter) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// syncBuffer is a bytes.Buffer safe for concurrent writers and readers.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

// errWriter writes once, then returns an error on subsequent writes.
type errWriter struct{ wrote int }

func (e *errWriter) Write(p []byte) (int, error) {
	if e.wrote == 0 {
		e.wrote += len(p)
		return len(p), nil
	}
	return 0, errors.New("write fail")
}

// failingTokenizer always errors so the word-count fallback is used.
type failingTokenizer struct{}

func (failingTokenizer) Count(context.Context, string) (int, error) {
	return 0, errors.New("tokenizer down")
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}

// writePNG creates a w x h PNG image and returns its path.
func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return writeFile(t, dir, name, buf.Bytes())
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

// newTestManager builds a Manager around a whose metrics records go to the
// returned buffer.
func newTestManager(t *testing.T, a InferenceAdapter, cfg ManagerConfig) (*Manager, *syncBuffer) {
	t.Helper()
	buf := &syncBuffer{}
	cfg.Adapter = a
	if cfg.Recorder == nil {
		cfg.Recorder = NewMetricsRecorderWriter(buf, nil)
	}
	m := NewWithConfig(cfg)
	t.Cleanup(func() { _ = m.Close() })
	return m, buf
}

// collect pulls every chunk of s.
func collect(t *testing.T, s *ChunkStream) []string {
	t.Helper()
	ctx := testCtx(t)
	var out []string
	for {
		c, ok := s.Next(ctx)
		if !ok {
			return out
		}
		out = append(out, c)
	}
}

// waitIdle waits until the admission gate has been released.
func waitIdle(t *testing.T, m *Manager) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for m.inflight() || len(m.queueCh) > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("generation gate not released")
		}
		time.Sleep(2 * time.Millisecond)
	}
}
