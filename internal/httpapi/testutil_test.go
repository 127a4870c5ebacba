package httpapi

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"ocrd/internal/manager"
	"ocrd/internal/session"
	"ocrd/internal/uploads"
	"ocrd/pkg/types"
)

type mockStream struct {
	id     string
	chunks []string
	i      int
	closed bool
}

func (s *mockStream) ID() string { return s.id }
func (s *mockStream) Next(ctx context.Context) (string, bool) {
	if s.i >= len(s.chunks) {
		return "", false
	}
	c := s.chunks[s.i]
	s.i++
	return c, true
}
func (s *mockStream) Close() { s.closed = true }

type mockService struct {
	mu        sync.Mutex
	ready     bool
	status    types.StatusResponse
	cancel    manager.CancelStatus
	chunks    []string
	streamErr error
	onceText  string
	onceErr   error
	reqs      []manager.GenerationRequest
	last      *mockStream
}

func (m *mockService) Ready() bool                  { return m.ready }
func (m *mockService) Status() types.StatusResponse { return m.status }
func (m *mockService) Cancel() manager.CancelStatus { return m.cancel }

func (m *mockService) ProcessOnce(ctx context.Context, req manager.GenerationRequest) (string, error) {
	m.mu.Lock()
	m.reqs = append(m.reqs, req)
	m.mu.Unlock()
	return m.onceText, m.onceErr
}

func (m *mockService) Stream(ctx context.Context, req manager.GenerationRequest) (ChunkSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs = append(m.reqs, req)
	if m.streamErr != nil {
		return nil, m.streamErr
	}
	m.last = &mockStream{id: "gen1", chunks: m.chunks}
	return m.last, nil
}

func (m *mockService) requests() []manager.GenerationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]manager.GenerationRequest(nil), m.reqs...)
}

type mockHTTPError struct {
	msg  string
	code int
}

func (e mockHTTPError) Error() string   { return e.msg }
func (e mockHTTPError) StatusCode() int { return e.code }

type testEnv struct {
	svc      *mockService
	h        http.Handler
	uploads  *uploads.Store
	sessions *session.FileStore
}

func newTestEnv(t *testing.T, svc *mockService) *testEnv {
	t.Helper()
	up, err := uploads.New(t.TempDir())
	if err != nil {
		t.Fatalf("uploads: %v", err)
	}
	fs, err := session.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	now := time.Date(2024, 3, 1, 14, 22, 5, 0, time.Local)
	h := NewMux(svc, Deps{
		Sessions: fs,
		Uploads:  up,
		Features: map[string]bool{"llama": false, "tesseract": true},
		Now:      func() time.Time { return now },
	})
	return &testEnv{svc: svc, h: h, uploads: up, sessions: fs}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.h.ServeHTTP(w, req)
	return w
}

// ocrRequest builds a multipart /ocr request; empty fields are omitted.
func ocrRequest(t *testing.T, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write(content)
	}
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/ocr", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
