package e2e

import (
	"bufio"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ocrd/internal/httpapi"
	"ocrd/internal/manager"
	"ocrd/internal/session"
	"ocrd/internal/uploads"
)

// scriptedAdapter emits frags in order. With hold set it pauses after the
// first fragment until hold is closed or the generation is told to stop.
type scriptedAdapter struct {
	frags []string
	hold  chan struct{}
}

func (a *scriptedAdapter) Name() string { return "scripted" }
func (a *scriptedAdapter) Close() error { return nil }

func (a *scriptedAdapter) Generate(ctx context.Context, in manager.ModelInput, params manager.InferParams, onToken func(string) error) (manager.FinalResult, error) {
	var b strings.Builder
	for i, f := range a.frags {
		if params.ShouldStop != nil && params.ShouldStop() {
			return manager.FinalResult{Content: b.String()}, nil
		}
		if err := onToken(f); err != nil {
			return manager.FinalResult{Content: b.String()}, err
		}
		b.WriteString(f)
		if i == 0 && a.hold != nil {
			if !a.waitHold(ctx, params) {
				return manager.FinalResult{Content: b.String()}, nil
			}
		}
	}
	return manager.FinalResult{Content: b.String()}, nil
}

// waitHold reports whether generation should continue.
func (a *scriptedAdapter) waitHold(ctx context.Context, params manager.InferParams) bool {
	tick := time.NewTicker(5 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-a.hold:
			return true
		case <-ctx.Done():
			return false
		case <-tick.C:
			if params.ShouldStop != nil && params.ShouldStop() {
				return false
			}
		}
	}
}

type stack struct {
	srv        *httptest.Server
	mgr        *manager.Manager
	uploadDir  string
	dataDir    string
	metricsLog string
}

func newStack(t *testing.T, a manager.InferenceAdapter, mutate func(*manager.ManagerConfig)) *stack {
	t.Helper()
	root := t.TempDir()
	st := &stack{
		uploadDir:  filepath.Join(root, "uploads"),
		dataDir:    filepath.Join(root, "data"),
		metricsLog: filepath.Join(root, "logs", "metrics.log"),
	}
	cfg := manager.ManagerConfig{Adapter: a, MetricsLogPath: st.metricsLog, MaxWait: 5 * time.Second}
	if mutate != nil {
		mutate(&cfg)
	}
	st.mgr = manager.NewWithConfig(cfg)
	t.Cleanup(func() { _ = st.mgr.Close() })

	up, err := uploads.New(st.uploadDir)
	if err != nil {
		t.Fatalf("uploads: %v", err)
	}
	store, err := session.NewFileStore(st.dataDir)
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	mux := httpapi.NewMux(httpapi.FromManager(st.mgr), httpapi.Deps{Sessions: store, Uploads: up})
	st.srv = httptest.NewServer(mux)
	t.Cleanup(st.srv.Close)
	return st
}

func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(1, 1, color.RGBA{B: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func postOCR(t *testing.T, ctx context.Context, base, filename string, img []byte, fields map[string]string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write(img)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	_ = mw.Close()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/ocr", &body)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	return resp
}

// readUntil reads from r until the accumulated text contains want.
func readUntil(t *testing.T, r *bufio.Reader, want string) string {
	t.Helper()
	var got strings.Builder
	buf := make([]byte, 256)
	for !strings.Contains(got.String(), want) {
		n, err := r.Read(buf)
		got.Write(buf[:n])
		if err != nil {
			t.Fatalf("stream ended before %q: got %q (%v)", want, got.String(), err)
		}
	}
	return got.String()
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	return doRead(t, req)
}

func httpPostJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return doRead(t, req)
}

func httpDelete(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodDelete, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	return doRead(t, req)
}

func doRead(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

// waitFor polls cond for up to two seconds.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func readFile(t *testing.T, p string) string {
	t.Helper()
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read %s: %v", p, err)
	}
	return string(b)
}
